package factory

import (
	"github.com/mikey/mail-sanitizer/internal/adapters/eml"
	"github.com/mikey/mail-sanitizer/internal/adapters/html"
	"github.com/mikey/mail-sanitizer/internal/config"
	"github.com/mikey/mail-sanitizer/internal/extract"
	"github.com/mikey/mail-sanitizer/internal/rebuild"
	"github.com/mikey/mail-sanitizer/internal/utils"
	"github.com/mikey/mail-sanitizer/internal/whitelist"
	"go.uber.org/zap"
)

// PipelineFactory creates the cleaning stages from the sanitizer settings
type PipelineFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewPipelineFactory creates a new pipeline factory
func NewPipelineFactory(cfg *config.Config, logger *zap.Logger) *PipelineFactory {
	return &PipelineFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateTextProcessor creates a new TextProcessor
func (f *PipelineFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger)
}

// CreateHeaderFilter creates the header whitelist
func (f *PipelineFactory) CreateHeaderFilter() *whitelist.Checker {
	return whitelist.NewChecker(f.cfg.GetSanitizer().Headers, f.logger)
}

// CreateParser creates the message parser
func (f *PipelineFactory) CreateParser() *eml.Parser {
	return eml.NewParser(f.logger, f.cfg.GetSanitizer().MaxMessageSize)
}

// CreateConverter creates the HTML to text converter
func (f *PipelineFactory) CreateConverter(text *utils.TextProcessor) *html.Converter {
	return html.NewConverter(f.logger, text)
}

// CreateExtractor creates the text extractor
func (f *PipelineFactory) CreateExtractor(converter *html.Converter, text *utils.TextProcessor) *extract.Extractor {
	return extract.NewExtractor(converter, text, f.logger, f.cfg.GetSanitizer().MaxDepth)
}

// CreateRebuilder creates the message rebuilder
func (f *PipelineFactory) CreateRebuilder(filter *whitelist.Checker, text *utils.TextProcessor) *rebuild.Rebuilder {
	return rebuild.NewRebuilder(filter, text, f.logger, f.cfg.GetSanitizer().MessageIDDomain)
}
