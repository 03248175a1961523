// Package ingest turns raw sensor telemetry documents into events and feeds
// them to the pipeline, from files, watched folders, or HTTP.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/perimeterwatch/sigcor/internal/signal"
)

// rawEvent is the on-disk/wire shape of one raw observation.
type rawEvent struct {
	Source  string                 `json:"source"`
	Payload map[string]interface{} `json:"payload"`
	Tags    []string               `json:"tags,omitempty"`
}

// Parser handles raw event parsing and normalization.
type Parser struct{}

// NewParser creates a new parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseEvent parses one raw JSON document into an event.
func (p *Parser) ParseEvent(rawJSON []byte) (*signal.Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(rawJSON, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if strings.TrimSpace(raw.Source) == "" {
		return nil, fmt.Errorf("event is missing a source")
	}

	ev := signal.NewEvent(raw.Source, raw.Payload)
	ev.Tag(raw.Tags...)
	return ev, nil
}

// ReadEvents reads events from JSON or JSONL input. A document starting
// with '[' is decoded as an array; anything else is treated as one JSON
// object per line. skipInvalid drops malformed entries instead of failing.
func (p *Parser) ReadEvents(r io.Reader, skipInvalid bool) ([]*signal.Event, int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read input: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, 0, nil
	}

	if trimmed[0] == '[' {
		var rawDocs []json.RawMessage
		if err := json.Unmarshal(trimmed, &rawDocs); err != nil {
			return nil, 0, fmt.Errorf("failed to parse event array: %w", err)
		}
		return p.collect(rawDocs, skipInvalid)
	}

	var rawDocs []json.RawMessage
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		rawDocs = append(rawDocs, json.RawMessage(append([]byte(nil), line...)))
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to scan input: %w", err)
	}
	return p.collect(rawDocs, skipInvalid)
}

// collect parses each raw document, honoring skipInvalid. The second return
// value counts dropped documents.
func (p *Parser) collect(rawDocs []json.RawMessage, skipInvalid bool) ([]*signal.Event, int, error) {
	var events []*signal.Event
	skipped := 0
	for i, doc := range rawDocs {
		ev, err := p.ParseEvent(doc)
		if err != nil {
			if skipInvalid {
				skipped++
				continue
			}
			return nil, skipped, fmt.Errorf("event %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, skipped, nil
}
