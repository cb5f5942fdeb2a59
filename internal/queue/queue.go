// Package queue implements the capability request work queue described
// in spec.md section 3: items move pending -> processing -> {completed,
// failed} and never revive. Queue is persisted as canonical JSON.
package queue

import (
	"encoding/json"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a queue item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Item is a single capability request, as described in spec.md
// section 3.
type Item struct {
	ID          string    `json:"id"`
	Capability  string    `json:"capability"`
	Context     string    `json:"context"`
	FirstSeen   time.Time `json:"first_seen"`
	Occurrences int       `json:"occurrences"`
	Status      Status    `json:"status"`
}

// Queue is the persisted work-queue document.
type Queue struct {
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Load reads a queue file. A missing file is treated as an empty
// queue, per spec.md section 8 ("Missing queue file: treated as empty
// queue").
func Load(path string) (*Queue, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Queue{}, nil
	}
	if err != nil {
		return nil, err
	}
	var q Queue
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// Save writes the queue as indented JSON (fields in struct order) via a
// temp-file-then-rename so readers never observe a partial write.
func (q *Queue) Save(path string) error {
	q.UpdatedAt = time.Now().UTC()
	raw, err := json.MarshalIndent(q, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// dedupKey implements the spec's dedup rule: lowercase(trim(capability)).
func dedupKey(capability string) string {
	return strings.ToLower(strings.TrimSpace(capability))
}

// Merge folds newly observed capability/context pairs into the queue.
// Existing entries preserve status and id; occurrences is incremented.
// "First seen wins" for the displayed capability string, per spec.md
// section 9's Open Questions resolution.
func (q *Queue) Merge(observations []Observation, now time.Time) {
	index := make(map[string]int, len(q.Items))
	for i, item := range q.Items {
		index[dedupKey(item.Capability)] = i
	}

	for _, obs := range observations {
		key := dedupKey(obs.Capability)
		if i, ok := index[key]; ok {
			q.Items[i].Occurrences++
			continue
		}
		item := Item{
			ID:          uuid.NewString(),
			Capability:  obs.Capability,
			Context:     obs.Context,
			FirstSeen:   now,
			Occurrences: 1,
			Status:      StatusPending,
		}
		q.Items = append(q.Items, item)
		index[key] = len(q.Items) - 1
	}
}

// Observation is a single sighting of a capability request, typically
// produced by the log extractor.
type Observation struct {
	Capability string
	Context    string
}

// Pending returns indexes of items still in StatusPending.
func (q *Queue) Pending() []int {
	var out []int
	for i, item := range q.Items {
		if item.Status == StatusPending {
			out = append(out, i)
		}
	}
	return out
}

// logLinePattern matches the `[MISSING: <capability>]` tag the host
// emits when it cannot satisfy a requested capability. Grounded on the
// original implementation's day_logger.py, whose
// `MISSING_PATTERN = re.compile(r"\[MISSING:\s*(.+?)\]")` is carried
// over verbatim as the extraction contract.
var logLinePattern = regexp.MustCompile(`\[MISSING:\s*(.+?)\]`)

// ExtractFromText is the stateless log-to-records extractor described
// in spec.md section 1 as an external collaborator: it never mutates
// a queue itself, only produces Observations for Merge to fold in. A
// line's full trimmed text is kept as Context, matching the original's
// day_logger.py behavior of recording the source line alongside the
// extracted capability.
func ExtractFromText(text string) []Observation {
	var out []Observation
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		m := logLinePattern.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		capability := strings.TrimSpace(m[1])
		if capability == "" {
			continue
		}
		out = append(out, Observation{Capability: capability, Context: trimmed})
	}
	return out
}
