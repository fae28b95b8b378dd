// Package translate runs prompt-driven translation through an AI vendor.
package translate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/havenhealth/haven/internal/chat"
	"github.com/havenhealth/haven/internal/domain"
	"github.com/havenhealth/haven/internal/i18n"
	debuglog "github.com/havenhealth/haven/internal/log"
	"github.com/havenhealth/haven/internal/plugins/ai"
)

// batchConcurrency caps in-flight vendor calls for TranslateBatch.
const batchConcurrency = 4

var Supported = []language.Tag{
	language.English,
	language.Spanish,
	language.French,
	language.German,
	language.Italian,
	language.Portuguese,
	language.Dutch,
	language.Russian,
	language.Japanese,
	language.Korean,
	language.Chinese,
	language.Arabic,
	language.Hindi,
}

var matcher = language.NewMatcher(Supported)

type Language struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	NativeName string `json:"native_name"`
}

type Translation struct {
	Source         string `json:"source"`
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language,omitempty"`
	TargetLanguage string `json:"target_language"`
}

type Translator struct {
	vendor ai.Vendor
	opts   domain.ChatOptions
}

func New(vendor ai.Vendor, model string) *Translator {
	opts := domain.ChatOptions{Temperature: 0.2}.WithDefaults(model)
	return &Translator{vendor: vendor, opts: opts}
}

// ParseLanguage resolves code to a supported language. Regional variants
// match their base language; anything else is rejected.
func ParseLanguage(code string) (language.Tag, error) {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil {
		return language.Und, fmt.Errorf(i18n.T("translate_error_unsupported_language"), code)
	}
	matched, _, confidence := matcher.Match(tag)
	if confidence < language.High {
		return language.Und, fmt.Errorf(i18n.T("translate_error_unsupported_language"), code)
	}
	base, _ := matched.Base()
	return language.Make(base.String()), nil
}

// Languages lists the supported languages with names in displayIn.
func Languages(displayIn string) []Language {
	in, err := ParseLanguage(displayIn)
	if err != nil {
		in = language.English
	}
	namer := display.Tags(in)
	out := make([]Language, 0, len(Supported))
	for _, tag := range Supported {
		out = append(out, Language{
			Code:       tag.String(),
			Name:       namer.Name(tag),
			NativeName: display.Self.Name(tag),
		})
	}
	return out
}

// Translate renders text in target. source may be empty to let the model
// detect it.
func (t *Translator) Translate(ctx context.Context, text, target, source string) (*Translation, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s", i18n.T("translate_error_empty_text"))
	}
	targetTag, err := ParseLanguage(target)
	if err != nil {
		return nil, err
	}
	var sourceName string
	if source != "" {
		sourceTag, err := ParseLanguage(source)
		if err != nil {
			return nil, err
		}
		source = sourceTag.String()
		sourceName = display.English.Tags().Name(sourceTag)
	}

	msgs := []*chat.ChatCompletionMessage{
		{Role: chat.ChatMessageRoleSystem, Content: systemPrompt(display.English.Tags().Name(targetTag), sourceName)},
		{Role: chat.ChatMessageRoleUser, Content: text},
	}
	opts := t.opts
	out, err := t.vendor.Send(ctx, msgs, &opts)
	if err != nil {
		return nil, fmt.Errorf("translate to %s: %w", targetTag, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, fmt.Errorf("translate to %s: empty response", targetTag)
	}
	debuglog.Debug(debuglog.Trace, "translate %q -> %s: %q\n", text, targetTag, out)
	return &Translation{Source: text, Text: out, SourceLanguage: source, TargetLanguage: targetTag.String()}, nil
}

// TranslateBatch translates every text, preserving order. The first error
// is returned; results for texts that succeeded are still filled in.
func (t *Translator) TranslateBatch(ctx context.Context, texts []string, target, source string) ([]*Translation, error) {
	if _, err := ParseLanguage(target); err != nil {
		return nil, err
	}

	results := make([]*Translation, len(texts))
	errs := make([]error, len(texts))
	sem := make(chan struct{}, batchConcurrency)
	var wg sync.WaitGroup
	for i, text := range texts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			defer func() { <-sem }()
			results[i], errs[i] = t.Translate(ctx, text, target, source)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return results, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return results, nil
}

func systemPrompt(targetName, sourceName string) string {
	from := "the source language"
	if sourceName != "" {
		from = sourceName
	}
	return fmt.Sprintf("You translate user-facing text for a mental health app from %s into %s. "+
		"Keep the tone warm and supportive, keep placeholders such as {{name}} or %%s unchanged, "+
		"and reply with the translation only.", from, targetName)
}
