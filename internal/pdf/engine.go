// Package pdf opens PDF documents for extraction. Text lines and page renders
// come from PDFium running on a WebAssembly runtime; structural validation
// uses pdfcpu.
package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
	"github.com/pkg/errors"

	"github.com/MeKo-Tech/stmtgrid/internal/extract"
)

// Config configures the PDFium engine.
type Config struct {
	// PoolSize is the maximum number of PDFium instances, and so the number
	// of documents that can be open at once.
	PoolSize int `json:"pool_size" yaml:"pool_size" mapstructure:"pool_size"`
	// InstanceTimeout bounds the wait for a free instance.
	InstanceTimeout time.Duration `json:"instance_timeout" yaml:"instance_timeout" mapstructure:"instance_timeout"`
	// Validate runs pdfcpu structural validation before opening.
	Validate bool `json:"validate" yaml:"validate" mapstructure:"validate"`
	// Credentials unlock encrypted documents.
	Credentials *Credentials `json:"-" yaml:"-" mapstructure:"-"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		PoolSize:        2,
		InstanceTimeout: 30 * time.Second,
		Validate:        true,
	}
}

// Engine opens documents on a pool of PDFium instances. It implements
// extract.Opener.
type Engine struct {
	pool   pdfium.Pool
	config Config
	logger *slog.Logger
}

// NewEngine initializes the PDFium pool.
func NewEngine(config Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.PoolSize < 1 {
		config.PoolSize = 1
	}
	if config.InstanceTimeout <= 0 {
		config.InstanceTimeout = DefaultConfig().InstanceTimeout
	}

	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  config.PoolSize,
		MaxTotal: config.PoolSize,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialise pdfium")
	}

	return &Engine{pool: pool, config: config, logger: logger}, nil
}

// Open sniffs, optionally validates and opens data. The returned document
// holds a PDFium instance until it is closed.
func (e *Engine) Open(ctx context.Context, data []byte) (extract.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := Sniff(data); err != nil {
		return nil, err
	}
	if e.config.Validate {
		info, err := Validate(data, e.config.Credentials)
		if err != nil {
			return nil, err
		}
		e.logger.Debug("pdf validated", "pages", info.PageCount, "version", info.Version, "encrypted", info.Encrypted)
	}

	instance, err := e.pool.GetInstance(e.config.InstanceTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get pdfium instance")
	}

	req := &requests.OpenDocument{File: &data}
	if e.config.Credentials != nil && e.config.Credentials.UserPassword != "" {
		req.Password = &e.config.Credentials.UserPassword
	}
	doc, err := instance.OpenDocument(req)
	if err != nil {
		_ = instance.Close()
		return nil, fmt.Errorf("%w: %v", extract.ErrInvalidDocument, errors.Wrap(err, "failed to open PDF document"))
	}

	pageCount, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		_, _ = instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{Document: doc.Document})
		_ = instance.Close()
		return nil, fmt.Errorf("%w: %v", extract.ErrInvalidDocument, errors.Wrap(err, "failed to get page count"))
	}

	return &document{
		instance: instance,
		doc:      doc.Document,
		pages:    pageCount.PageCount,
	}, nil
}

// Close shuts the PDFium pool down.
func (e *Engine) Close() error {
	return e.pool.Close()
}
