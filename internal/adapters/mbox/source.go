package mbox

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/core"
)

// maxLineBytes is the longest line Each will accept. Real messages wrap
// lines well below this; anything longer is a corrupt mailbox.
const maxLineBytes = 1 << 20

// Source is a DocumentSource over a classic mbox file: messages separated
// by "From " lines, ">From " quoting in bodies. The file is reopened on
// every iteration, so the source can be walked once per fold pass.
type Source struct {
	name   string
	path   string
	logger *zap.Logger
}

// NewSource creates a source over the mbox file at path, named after the
// file's base name.
func NewSource(path string, logger *zap.Logger) *Source {
	return &Source{
		name:   filepath.Base(path),
		path:   path,
		logger: logger,
	}
}

// Name identifies the source.
func (s *Source) Name() string {
	return s.name
}

// Each parses the mbox message by message. A message the parser cannot make
// sense of is still yielded, as nil, so downstream skip accounting sees it;
// fn deciding to stop is the only way out besides I/O failure.
func (s *Source) Each(ctx context.Context, fn func(*core.Document) error) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open mbox %s: %w", s.path, err)
	}
	defer f.Close()

	var raw bytes.Buffer
	index := 0
	flush := func() error {
		if raw.Len() == 0 {
			return nil
		}
		defer raw.Reset()
		doc, err := ParseMessage(bytes.NewReader(raw.Bytes()))
		if err != nil {
			s.logger.Warn("Skipping unparseable message",
				zap.String("mbox", s.name),
				zap.Int("index", index),
				zap.Error(err))
			index++
			return fn(nil)
		}
		index++
		return fn(doc)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	inMessage := false
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()
		if strings.HasPrefix(line, "From ") {
			if inMessage {
				if err := flush(); err != nil {
					return err
				}
			}
			inMessage = true
			continue
		}
		if !inMessage {
			// Preamble before the first separator is not a message.
			continue
		}
		// Undo mboxrd quoting: ">From ", ">>From ", ... lose one ">".
		if strings.HasPrefix(line, ">") && strings.HasPrefix(strings.TrimLeft(line, ">"), "From ") {
			line = line[1:]
		}
		raw.WriteString(line)
		raw.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read mbox %s: %w", s.path, err)
	}
	return flush()
}
