package extract

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/citecheck/internal/record"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Decoded is one generator record with any problems found while decoding it.
// A record with problems is still carried so it can be reported as rejected.
type Decoded struct {
	Candidate record.Candidate
	Problems  []string
}

// Wrap turns already-typed candidates into Decoded values with no problems.
func Wrap(cs []record.Candidate) []Decoded {
	out := make([]Decoded, len(cs))
	for i, c := range cs {
		out[i] = Decoded{Candidate: c}
	}
	return out
}

// Decoder parses generator output into candidates.
type Decoder struct {
	schema *jsonschema.Schema
}

func NewDecoder() (*Decoder, error) {
	s, err := compileCandidateSchema()
	if err != nil {
		return nil, fmt.Errorf("compile candidate schema: %w", err)
	}
	return &Decoder{schema: s}, nil
}

// Decode accepts a JSON array of records, an object with a "candidates"
// array, or JSON Lines, optionally wrapped in a markdown code fence. It only
// fails when the payload as a whole cannot be split into records.
func (d *Decoder) Decode(data []byte) ([]Decoded, error) {
	text := stripCodeBlock(string(data))
	if text == "" {
		return []Decoded{}, nil
	}

	var raws []json.RawMessage
	switch text[0] {
	case '[':
		if err := json.Unmarshal([]byte(text), &raws); err != nil {
			return nil, fmt.Errorf("parse candidates json: %w (raw: %s)", err, truncate(text, 200))
		}
	case '{':
		var wrapper struct {
			Candidates []json.RawMessage `json:"candidates"`
		}
		if err := json.Unmarshal([]byte(text), &wrapper); err == nil && wrapper.Candidates != nil {
			raws = wrapper.Candidates
			break
		}
		if json.Valid([]byte(text)) {
			raws = []json.RawMessage{json.RawMessage(text)}
			break
		}
		lines, err := splitLines(text)
		if err != nil {
			return nil, err
		}
		raws = lines
	default:
		return nil, fmt.Errorf("parse candidates json: unexpected leading %q (raw: %s)", text[0], truncate(text, 200))
	}

	out := make([]Decoded, len(raws))
	for i, raw := range raws {
		out[i] = d.decodeOne(raw)
	}
	return out, nil
}

func (d *Decoder) decodeOne(raw json.RawMessage) Decoded {
	var res Decoded

	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		res.Problems = []string{"malformed json: " + err.Error()}
		return res
	}
	if err := d.schema.Validate(generic); err != nil {
		res.Problems = schemaProblems(err)
	}

	if _, isObject := generic.(map[string]any); !isObject {
		return res
	}
	// Type mismatches leave the offending field zero but fill the rest.
	if err := json.Unmarshal(raw, &res.Candidate); err != nil && len(res.Problems) == 0 {
		res.Problems = []string{"decode: " + err.Error()}
	}
	return res
}

func splitLines(text string) ([]json.RawMessage, error) {
	var out []json.RawMessage
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		out = append(out, json.RawMessage(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan candidate lines: %w", err)
	}
	return out, nil
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json|jsonl)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
