// Package plugins holds the setup plumbing shared by vendor plugins: each
// plugin declares setup questions whose answers come from environment
// variables named after the plugin.
package plugins

import (
	"fmt"
	"os"
	"strings"

	"github.com/havenhealth/haven/internal/i18n"
)

// SetupQuestion is one configurable value of a plugin.
type SetupQuestion struct {
	Name        string
	EnvVariable string
	Required    bool
	Value       string
}

// IsConfigured reports whether a required question has an answer.
func (q *SetupQuestion) IsConfigured() bool {
	return !q.Required || q.Value != ""
}

// OnEnv loads the answer from the environment unless it is already set.
func (q *SetupQuestion) OnEnv() {
	if q.Value == "" {
		q.Value = strings.TrimSpace(os.Getenv(q.EnvVariable))
	}
}

type PluginBase struct {
	Name            string
	EnvNamePrefix   string
	SetupQuestions  []*SetupQuestion
	ConfigureCustom func() error
}

// NewVendorPluginBase creates the base for an AI vendor named name.
func NewVendorPluginBase(name string, configure func() error) *PluginBase {
	return &PluginBase{
		Name:            name,
		EnvNamePrefix:   BuildEnvVariablePrefix(name),
		ConfigureCustom: configure,
	}
}

// BuildEnvVariablePrefix turns "Open AI" into "OPEN_AI_".
func BuildEnvVariablePrefix(name string) string {
	prefix := strings.ToUpper(strings.TrimSpace(name))
	prefix = strings.NewReplacer(" ", "_", "-", "_").Replace(prefix)
	if prefix == "" {
		return ""
	}
	return prefix + "_"
}

func (o *PluginBase) GetName() string {
	return o.Name
}

// AddSetupQuestion registers a question answered by <PREFIX><NAME>.
func (o *PluginBase) AddSetupQuestion(name string, required bool) *SetupQuestion {
	envName := strings.ToUpper(strings.ReplaceAll(name, " ", "_"))
	q := &SetupQuestion{
		Name:        name,
		EnvVariable: o.EnvNamePrefix + envName,
		Required:    required,
	}
	o.SetupQuestions = append(o.SetupQuestions, q)
	return q
}

func (o *PluginBase) IsConfigured() bool {
	for _, q := range o.SetupQuestions {
		q.OnEnv()
		if !q.IsConfigured() {
			return false
		}
	}
	return true
}

// Configure reads every question from the environment and runs the
// plugin's own configure hook. A missing required value is an error, so a
// vendor without credentials fails on first use rather than at startup.
func (o *PluginBase) Configure() error {
	for _, q := range o.SetupQuestions {
		q.OnEnv()
		if !q.IsConfigured() {
			return fmt.Errorf(i18n.T("plugin_error_not_configured"), o.Name, q.EnvVariable)
		}
	}
	if o.ConfigureCustom != nil {
		return o.ConfigureCustom()
	}
	return nil
}
