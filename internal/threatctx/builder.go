// Package threatctx enriches signals with vulnerability-knowledge context
// resolved from a static CVE index loaded at startup.
package threatctx

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/perimeterwatch/sigcor/internal/signal"
)

// Entry is one CVE record in the knowledge index.
type Entry struct {
	Severity   string   `json:"severity"`
	Title      string   `json:"title"`
	References []string `json:"references"`
}

// knowledgeIndex is the on-disk shape of the index document.
type knowledgeIndex struct {
	Nodes map[string]Entry `json:"nodes"`
}

// severityScores maps index severities to numeric knowledge-risk scores.
// Severities outside the table score 0.6.
var severityScores = map[string]float64{
	"critical": 1.0,
	"high":     0.85,
	"medium":   0.6,
	"low":      0.35,
	"none":     0.1,
}

const unknownSeverityScore = 0.6

// Builder resolves CVE identifiers found on a signal against the loaded
// index and produces enrichment context maps. The index is read-only for
// the process lifetime.
type Builder struct {
	nodes  map[string]Entry
	logger *log.Logger
}

// NewBuilder loads the knowledge index from indexPath. A missing file
// yields an empty index, not an error; a malformed file is an error.
func NewBuilder(indexPath string, logger *log.Logger) (*Builder, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[ThreatContext] ", log.LstdFlags)
	}
	b := &Builder{nodes: make(map[string]Entry), logger: logger}

	if indexPath == "" {
		return b, nil
	}
	data, err := os.ReadFile(indexPath)
	if os.IsNotExist(err) {
		logger.Printf("Knowledge index %s not found, continuing with empty index", indexPath)
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge index: %w", err)
	}

	var index knowledgeIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge index: %w", err)
	}
	for id, entry := range index.Nodes {
		b.nodes[strings.ToUpper(id)] = entry
	}
	logger.Printf("Loaded %d knowledge index entries from %s", len(b.nodes), indexPath)
	return b, nil
}

// Size returns the number of entries in the loaded index.
func (b *Builder) Size() int {
	return len(b.nodes)
}

// BuildContext extracts CVE identifiers from the signal (direct payload
// field, nested alert fields, CVE-shaped signature IDs, and event tags),
// resolves them against the index, and returns an enrichment context map.
// An empty map is returned when no identifiers were found.
func (b *Builder) BuildContext(sig *signal.Signal) map[string]interface{} {
	candidates := extractCandidates(sig)
	if len(candidates) == 0 {
		return map[string]interface{}{}
	}

	context := map[string]interface{}{
		"tags": candidates,
	}

	var cves []map[string]interface{}
	knowledgeRisk := 0.0
	for _, id := range candidates {
		entry, ok := b.nodes[id]
		if !ok {
			continue
		}
		cves = append(cves, map[string]interface{}{
			"id":         id,
			"severity":   entry.Severity,
			"title":      entry.Title,
			"references": entry.References,
		})
		if score := severityScore(entry.Severity); score > knowledgeRisk {
			knowledgeRisk = score
		}
	}
	if len(cves) > 0 {
		context["cves"] = cves
		context["analytics"] = map[string]interface{}{"knowledge_risk": knowledgeRisk}
	}
	return context
}

// MergeContexts unions the cves and tags lists across contexts (skipping
// duplicates) and keeps the maximum knowledge_risk seen. Empty collections
// are omitted from the merged map entirely.
func MergeContexts(contexts []map[string]interface{}) map[string]interface{} {
	merged := map[string]interface{}{}
	var cves []map[string]interface{}
	var tags []string
	seenCVE := make(map[string]struct{})
	seenTag := make(map[string]struct{})
	knowledgeRisk := 0.0
	haveRisk := false

	for _, ctx := range contexts {
		if ctx == nil {
			continue
		}
		if list, ok := ctx["cves"].([]map[string]interface{}); ok {
			for _, cve := range list {
				id, _ := cve["id"].(string)
				if id != "" {
					if _, dup := seenCVE[id]; dup {
						continue
					}
					seenCVE[id] = struct{}{}
				}
				cves = append(cves, cve)
			}
		}
		if list, ok := ctx["tags"].([]string); ok {
			for _, tag := range list {
				if _, dup := seenTag[tag]; dup {
					continue
				}
				seenTag[tag] = struct{}{}
				tags = append(tags, tag)
			}
		}
		if analytics, ok := ctx["analytics"].(map[string]interface{}); ok {
			if risk, ok := analytics["knowledge_risk"].(float64); ok {
				haveRisk = true
				if risk > knowledgeRisk {
					knowledgeRisk = risk
				}
			}
		}
	}

	if len(cves) > 0 {
		merged["cves"] = cves
	}
	if len(tags) > 0 {
		merged["tags"] = tags
	}
	if haveRisk {
		merged["analytics"] = map[string]interface{}{"knowledge_risk": knowledgeRisk}
	}
	return merged
}

// KnowledgeRisk reads the knowledge_risk value out of a context's analytics
// sub-map, defaulting to 0.
func KnowledgeRisk(context map[string]interface{}) float64 {
	if analytics, ok := context["analytics"].(map[string]interface{}); ok {
		if risk, ok := analytics["knowledge_risk"].(float64); ok {
			return risk
		}
	}
	return 0
}

// extractCandidates collects deduplicated, uppercased CVE identifiers from
// every location a sensor may have recorded one.
func extractCandidates(sig *signal.Signal) []string {
	var candidates []string
	seen := make(map[string]struct{})
	add := func(raw string) {
		id := strings.ToUpper(strings.TrimSpace(raw))
		if !strings.HasPrefix(id, "CVE-") {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		candidates = append(candidates, id)
	}

	payload := sig.Event.Payload
	add(signal.PayloadString(payload, "cve_id"))
	if alert := signal.PayloadMap(payload, "alert"); alert != nil {
		add(signal.PayloadString(alert, "cve_id"))
		add(signal.PayloadString(alert, "signature_id"))
	}
	for _, tag := range sig.Event.Tags {
		add(tag)
	}
	return candidates
}

func severityScore(severity string) float64 {
	if score, ok := severityScores[strings.ToLower(severity)]; ok {
		return score
	}
	return unknownSeverityScore
}
