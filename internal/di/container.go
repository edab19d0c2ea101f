package di

import (
	"github.com/spf13/afero"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-sanitizer/internal/adapters/eml"
	"github.com/mikey/mail-sanitizer/internal/adapters/html"
	"github.com/mikey/mail-sanitizer/internal/config"
	"github.com/mikey/mail-sanitizer/internal/core"
	"github.com/mikey/mail-sanitizer/internal/extract"
	"github.com/mikey/mail-sanitizer/internal/factory"
	"github.com/mikey/mail-sanitizer/internal/identity"
	"github.com/mikey/mail-sanitizer/internal/logging"
	"github.com/mikey/mail-sanitizer/internal/ports"
	"github.com/mikey/mail-sanitizer/internal/rebuild"
	"github.com/mikey/mail-sanitizer/internal/utils"
	"github.com/mikey/mail-sanitizer/internal/whitelist"
)

// Options controls how the container is assembled
type Options struct {
	// ConfigFile is an explicit configuration file; empty searches the defaults
	ConfigFile string

	// Overrides are applied on top of file and environment values
	Overrides map[string]interface{}

	// Fs is the filesystem the batch reads and writes; nil selects the OS
	Fs afero.Fs
}

// BuildContainer creates and configures a dependency injection container
func BuildContainer(opts Options) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		cfg, err := config.New(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		for key, value := range opts.Overrides {
			cfg.Set(key, value)
		}
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register filesystem
	if err := container.Provide(func() afero.Fs {
		if opts.Fs != nil {
			return opts.Fs
		}
		return afero.NewOsFs()
	}); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLedgerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewPipelineFactory); err != nil {
		return nil, err
	}

	// Register ledger
	if err := container.Provide(func(f *factory.LedgerFactory) (core.Ledger, error) {
		return f.CreateLedger()
	}); err != nil {
		return nil, err
	}

	// Register pipeline stages
	if err := container.Provide(func(f *factory.PipelineFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.PipelineFactory) *whitelist.Checker {
		return f.CreateHeaderFilter()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.PipelineFactory) *eml.Parser {
		return f.CreateParser()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(eml.NewWriter); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.PipelineFactory, text *utils.TextProcessor) *html.Converter {
		return f.CreateConverter(text)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.PipelineFactory, converter *html.Converter, text *utils.TextProcessor) *extract.Extractor {
		return f.CreateExtractor(converter, text)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.PipelineFactory, filter *whitelist.Checker, text *utils.TextProcessor) *rebuild.Rebuilder {
		return f.CreateRebuilder(filter, text)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(identity.NewResolver); err != nil {
		return nil, err
	}

	// Register sanitizer service
	if err := container.Provide(func(
		cfg *config.Config,
		parser *eml.Parser,
		extractor *extract.Extractor,
		rebuilder *rebuild.Rebuilder,
		resolver *identity.Resolver,
		writer *eml.Writer,
		ledger core.Ledger,
		fs afero.Fs,
		logger *zap.Logger,
	) (*core.SanitizerService, error) {
		settings, err := cfg.GetLedger()
		if err != nil {
			return nil, err
		}
		return core.NewSanitizerService(
			parser,
			extractor,
			rebuilder,
			resolver,
			writer,
			ledger,
			fs,
			logger,
			settings.SkipProcessed,
			settings.Retention,
		), nil
	}); err != nil {
		return nil, err
	}

	// Register batch runner
	if err := container.Provide(func(s *core.SanitizerService) ports.BatchRunner {
		return s
	}); err != nil {
		return nil, err
	}

	return container, nil
}
