package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const outputExtension = ".eml"

// SanitizerService is the core service that cleans a directory of messages
type SanitizerService struct {
	parser        MessageParser
	extractor     TextExtractor
	rebuilder     MessageRebuilder
	resolver      IdentityResolver
	writer        MessageWriter
	ledger        Ledger
	fs            afero.Fs
	logger        *zap.Logger
	skipProcessed bool
	retention     time.Duration
}

// NewSanitizerService creates a new sanitizer service. The ledger may be nil.
func NewSanitizerService(
	parser MessageParser,
	extractor TextExtractor,
	rebuilder MessageRebuilder,
	resolver IdentityResolver,
	writer MessageWriter,
	ledger Ledger,
	fs afero.Fs,
	logger *zap.Logger,
	skipProcessed bool,
	retention time.Duration,
) *SanitizerService {
	return &SanitizerService{
		parser:        parser,
		extractor:     extractor,
		rebuilder:     rebuilder,
		resolver:      resolver,
		writer:        writer,
		ledger:        ledger,
		fs:            fs,
		logger:        logger,
		skipProcessed: skipProcessed,
		retention:     retention,
	}
}

// fileResult describes one successfully cleaned file
type fileResult struct {
	output     string
	identifier Identifier
	messageID  string
	emptyBody  bool
}

// Run cleans every regular file of source into target. Only configuration
// and target directory problems are returned as errors; a file that cannot
// be cleaned is logged and counted.
func (s *SanitizerService) Run(ctx context.Context, source, target string) (Summary, error) {
	start := time.Now()
	var summary Summary

	if strings.TrimSpace(source) == "" || strings.TrimSpace(target) == "" {
		return summary, fmt.Errorf("%w: source and target directories must be set", ErrConfiguration)
	}

	info, err := s.fs.Stat(source)
	if err != nil {
		s.logger.Error("Source directory is not accessible", zap.String("source", source), zap.Error(err))
		return summary, fmt.Errorf("%w: source directory %s: %v", ErrConfiguration, source, err)
	}
	if !info.IsDir() {
		s.logger.Error("Source path is not a directory", zap.String("source", source))
		return summary, fmt.Errorf("%w: source path %s is not a directory", ErrConfiguration, source)
	}

	if err := s.fs.MkdirAll(target, 0o755); err != nil {
		s.logger.Error("Failed to create target directory", zap.String("target", target), zap.Error(err))
		return summary, fmt.Errorf("%w: %s: %v", ErrTargetUnavailable, target, err)
	}
	s.logger.Info("Target directory ensured", zap.String("target", target))

	entries, err := afero.ReadDir(s.fs, source)
	if err != nil {
		s.logger.Error("Failed to list source directory", zap.String("source", source), zap.Error(err))
		return summary, fmt.Errorf("%w: failed to list %s: %v", ErrConfiguration, source, err)
	}

	s.pruneLedger(ctx)

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		path := filepath.Join(source, entry.Name())
		if !s.isRegular(path, entry) {
			s.logger.Debug("Skipping non-regular file", zap.String("file", entry.Name()))
			summary.Skipped++
			continue
		}
		files = append(files, entry.Name())
	}
	summary.Scanned = len(files)

	if len(files) == 0 {
		s.logger.Warn("No files found in directory", zap.String("source", source))
		summary.Duration = time.Since(start)
		return summary, nil
	}

	s.logger.Info("Starting to process files",
		zap.String("source", source),
		zap.String("target", target),
		zap.Int("files", len(files)))

	for i, name := range files {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("Processing cancelled", zap.Int("remaining", len(files)-i), zap.Error(err))
			summary.Duration = time.Since(start)
			return summary, err
		}

		s.logger.Info("Processing file", zap.Int("number", i+1), zap.String("file", name))

		if s.alreadyCleaned(ctx, name) {
			s.logger.Info("Skipping file already cleaned in a previous run", zap.String("file", name))
			summary.AlreadyProcessed++
			continue
		}

		result, err := s.processFile(filepath.Join(source, name), name, target)
		if err != nil {
			s.logger.Error("Failed to process file", zap.String("file", name), zap.Error(err))
			summary.Failed++
			s.record(ctx, &LedgerEntry{
				SourceFile: name,
				Status:     StatusFailed,
				Detail:     err.Error(),
			})
			continue
		}

		summary.Cleaned++
		if result.emptyBody {
			summary.EmptyBodies++
		}
		if result.identifier.Generated {
			summary.GeneratedIdentifiers++
		}
		s.logger.Info("Saved cleaned version",
			zap.String("source", name),
			zap.String("output", filepath.Base(result.output)))

		s.record(ctx, &LedgerEntry{
			SourceFile: name,
			Identifier: result.identifier.Value,
			MessageID:  result.messageID,
			Status:     StatusCleaned,
		})
	}

	summary.Duration = time.Since(start)
	s.logger.Info("Processing complete", append(summary.Fields(), zap.String("target", target))...)

	return summary, nil
}

// isRegular reports whether the entry is a regular file, following symlinks
func (s *SanitizerService) isRegular(path string, entry os.FileInfo) bool {
	if entry.Mode()&os.ModeSymlink == 0 {
		return entry.Mode().IsRegular()
	}
	info, err := s.fs.Stat(path)
	if err != nil {
		s.logger.Debug("Failed to resolve symlink", zap.String("file", entry.Name()), zap.Error(err))
		return false
	}
	return info.Mode().IsRegular()
}

// processFile runs the pipeline for a single message
func (s *SanitizerService) processFile(path, name, target string) (result *fileResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("panic while sanitizing %s: %v", name, r)
		}
	}()

	raw, err := s.readMessage(path)
	if err != nil {
		return nil, err
	}

	body := s.extractor.Extract(raw)
	clean := s.rebuilder.Rebuild(raw, body)
	id := s.resolver.Resolve(name)

	output := filepath.Join(target, id.Value+outputExtension)
	if err := s.writeMessage(output, clean); err != nil {
		return nil, err
	}

	return &fileResult{
		output:     output,
		identifier: id,
		messageID:  clean.MessageID(),
		emptyBody:  body.Empty,
	}, nil
}

func (s *SanitizerService) readMessage(path string) (*RawMessage, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open message: %w", err)
	}
	defer f.Close()

	raw, err := s.parser.Parse(f)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// writeMessage writes msg to a temporary file next to output and renames it
// into place, so a failed write never leaves a partial output file
func (s *SanitizerService) writeMessage(output string, msg *CleanMessage) error {
	dir := filepath.Dir(output)
	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(output)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if err := s.writer.Write(tmp, msg); err != nil {
		tmp.Close()
		s.removeTemp(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		s.removeTemp(tmpName)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := s.fs.Rename(tmpName, output); err != nil {
		s.removeTemp(tmpName)
		return fmt.Errorf("failed to move message into place: %w", err)
	}
	return nil
}

func (s *SanitizerService) removeTemp(name string) {
	if err := s.fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("Failed to remove temporary file", zap.String("file", name), zap.Error(err))
	}
}

// alreadyCleaned consults the ledger when skipping processed files is enabled
func (s *SanitizerService) alreadyCleaned(ctx context.Context, name string) bool {
	if s.ledger == nil || !s.skipProcessed {
		return false
	}
	entry, err := s.ledger.Lookup(ctx, name)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("Failed to look up ledger entry", zap.String("file", name), zap.Error(err))
		}
		return false
	}
	return entry.Status == StatusCleaned
}

func (s *SanitizerService) record(ctx context.Context, entry *LedgerEntry) {
	if s.ledger == nil {
		return
	}
	entry.ProcessedAt = time.Now()
	if err := s.ledger.Record(ctx, entry); err != nil {
		s.logger.Warn("Failed to record ledger entry", zap.String("file", entry.SourceFile), zap.Error(err))
	}
}

func (s *SanitizerService) pruneLedger(ctx context.Context) {
	if s.ledger == nil || s.retention <= 0 {
		return
	}
	removed, err := s.ledger.Prune(ctx, time.Now().Add(-s.retention))
	if err != nil {
		s.logger.Warn("Failed to prune ledger", zap.Error(err))
		return
	}
	s.logger.Debug("Pruned ledger entries", zap.Int64("removed", removed))
}
