package chat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidCommand = errors.New("invalid command")

type Target int

const (
	TargetSearch Target = iota
	TargetTasks
	TargetClaims
)

// Command is what a chat query resolves to. Payload is nil for GET calls
// and for search.
type Command struct {
	Target  Target
	Method  string
	Path    string
	Payload interface{}
}

type AddTaskPayload struct {
	Title string `json:"title"`
	Due   string `json:"due"`
}

type FNOLPayload struct {
	ExternalRef string `json:"external_ref"`
	Docs        int    `json:"docs"`
}

// Parse matches query against the chat commands, first match wins. Matching
// ignores case; extracted values keep the caller's casing. Anything that is
// not a command is a search.
func Parse(query string) (Command, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	query = strings.TrimSpace(query)

	switch {
	case strings.HasPrefix(q, "list my tasks"):
		return Command{Target: TargetTasks, Method: "GET", Path: "list"}, nil

	case strings.HasPrefix(q, "add a task"):
		rest := query
		if i := strings.Index(query, ":"); i >= 0 {
			rest = query[i+1:]
		}
		rest = strings.TrimSpace(rest)
		title, due := rest, ""
		if i := strings.LastIndex(rest, " due "); i >= 0 {
			title, due = rest[:i], rest[i+len(" due "):]
		}
		title = strings.TrimSpace(title)
		if title == "" {
			return Command{}, fmt.Errorf("%w: task title is empty", ErrInvalidCommand)
		}
		return Command{
			Target:  TargetTasks,
			Method:  "POST",
			Path:    "add",
			Payload: AddTaskPayload{Title: title, Due: strings.TrimSpace(due)},
		}, nil

	case strings.HasPrefix(q, "complete task"):
		return Command{Target: TargetTasks, Method: "POST", Path: "complete/" + lastWord(query)}, nil

	case strings.Contains(q, "claims service status"):
		return Command{Target: TargetClaims, Method: "GET", Path: "status"}, nil

	case strings.HasPrefix(q, "get claim"):
		return Command{Target: TargetClaims, Method: "GET", Path: "claim/" + lastWord(query)}, nil

	case strings.HasPrefix(q, "create fnol"):
		p, err := parseFNOL(query)
		if err != nil {
			return Command{}, err
		}
		return Command{Target: TargetClaims, Method: "POST", Path: "fnol", Payload: p}, nil
	}

	return Command{Target: TargetSearch}, nil
}

// parseFNOL reads "... external ref <ref> with <n> doc(s)".
func parseFNOL(query string) (FNOLPayload, error) {
	i := indexFold(query, "external ref")
	if i < 0 {
		return FNOLPayload{}, fmt.Errorf("%w: missing external ref", ErrInvalidCommand)
	}
	rest := query[i+len("external ref"):]

	j := indexFold(rest, "with")
	if j < 0 {
		return FNOLPayload{}, fmt.Errorf("%w: missing document count", ErrInvalidCommand)
	}
	ref := strings.TrimSpace(rest[:j])
	if ref == "" {
		return FNOLPayload{}, fmt.Errorf("%w: empty external ref", ErrInvalidCommand)
	}

	count := rest[j+len("with"):]
	if k := indexFold(count, "doc"); k >= 0 {
		count = count[:k]
	}
	docs, err := strconv.Atoi(strings.TrimSpace(count))
	if err != nil || docs < 0 {
		return FNOLPayload{}, fmt.Errorf("%w: bad document count %q", ErrInvalidCommand, strings.TrimSpace(count))
	}

	return FNOLPayload{ExternalRef: ref, Docs: docs}, nil
}

func lastWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// indexFold is strings.Index ignoring ASCII case.
func indexFold(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}
