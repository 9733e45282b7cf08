package fallback

import (
	"fmt"
	"hash/fnv"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule maps a trigger substring to a canned answer.
type Rule struct {
	Trigger  string `yaml:"trigger"`
	Response string `yaml:"response"`
}

// Responder synthesizes an answer locally when the answer service is unreachable.
// Rules are evaluated in order; the first trigger contained in the question wins.
// Otherwise one of the default templates is chosen by hashing the question, so the
// same question always gets the same reply. Templates receive the question via %s.
type Responder struct {
	rules     []Rule
	templates []string
}

// New builds a responder. Empty rule or template lists fall back to the built-in tables.
func New(rules []Rule, templates []string) *Responder {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	if len(templates) == 0 {
		templates = DefaultTemplates()
	}
	return &Responder{
		rules:     append([]Rule(nil), rules...),
		templates: append([]string(nil), templates...),
	}
}

// Default returns the responder used by the chat client.
func Default() *Responder {
	return New(nil, nil)
}

// Demo returns the responder the server answers with when no model is configured.
func Demo() *Responder {
	return New(nil, []string{demoTemplate})
}

// Respond returns the canned answer for question.
func (r *Responder) Respond(question string) string {
	for _, rule := range r.rules {
		if rule.Trigger != "" && strings.Contains(question, rule.Trigger) {
			return rule.Response
		}
	}
	return strings.Replace(r.templates[pick(question, len(r.templates))], "%s", question, 1)
}

func pick(question string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(question))
	return int(h.Sum32() % uint32(n))
}

// Table is the YAML layout accepted by LoadFile.
type Table struct {
	Rules     []Rule   `yaml:"rules"`
	Templates []string `yaml:"templates"`
}

// LoadFile reads a rule table from a YAML file. Missing sections use the built-ins.
func LoadFile(path string) (*Responder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fallback table: %w", err)
	}

	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parsing fallback table: %w", err)
	}

	for i, rule := range table.Rules {
		if strings.TrimSpace(rule.Trigger) == "" {
			return nil, fmt.Errorf("fallback rule %d: trigger is required", i)
		}
	}
	for i, tpl := range table.Templates {
		if strings.Count(tpl, "%s") != 1 {
			return nil, fmt.Errorf("fallback template %d: must contain exactly one %%s", i)
		}
	}

	return New(table.Rules, table.Templates), nil
}
