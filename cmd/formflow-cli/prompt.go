package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/goliatone/go-formflow/pkg/metadata"
	"github.com/goliatone/go-formflow/pkg/session"
)

// ErrAborted is returned when the user interrupts a prompt.
var ErrAborted = errors.New("aborted by user")

const maxPasses = 5

// promptForm walks every visible editable field in group order, asking for a
// value and feeding it through the session. Fields revealed or reloaded by an
// earlier answer are picked up on the next pass; the loop ends once the whole
// form validates.
func promptForm(ctx context.Context, form *session.Session, doc metadata.Document) error {
	order := promptOrder(doc)

	for pass := 0; pass < maxPasses; pass++ {
		for _, name := range order {
			snap, ok := form.Field(name)
			if !ok || !snap.Visible {
				continue
			}
			cfg := doc.Field(name)
			if cfg == nil || cfg.ReadOnly || cfg.IsCalculated {
				continue
			}
			if pass > 0 && snap.Error == "" && snap.Dirty {
				continue
			}

			if err := promptField(ctx, form, *cfg, snap); err != nil {
				return err
			}
		}

		if form.Validate() {
			return nil
		}
		fmt.Println("Some answers need attention:")
		for _, name := range order {
			if snap, ok := form.Field(name); ok && snap.Visible && snap.Error != "" {
				fmt.Printf("  %s: %s\n", name, snap.Error)
			}
		}
	}
	return errors.New("form did not validate")
}

// promptOrder lists grouped fields first, in group order, then any ungrouped
// fields in document order.
func promptOrder(doc metadata.Document) []string {
	seen := make(map[string]bool)
	var order []string
	for _, group := range doc.Form.Groups {
		for _, name := range group.Fields {
			if !seen[name] {
				seen[name] = true
				order = append(order, name)
			}
		}
	}
	for _, name := range doc.FieldNames() {
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}
	return order
}

func promptField(ctx context.Context, form *session.Session, cfg metadata.FieldConfig, snap session.FieldSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := askValue(cfg, snap)
	if err != nil {
		return err
	}

	if err := form.SetValue(ctx, cfg.Name, value); err != nil {
		return err
	}
	// Let option reloads triggered by this answer land before the next
	// prompt reads field state.
	form.Wait()

	if after, ok := form.Field(cfg.Name); ok && after.Error != "" {
		fmt.Printf("  %s\n", after.Error)
	}
	return nil
}

func askValue(cfg metadata.FieldConfig, snap session.FieldSnapshot) (any, error) {
	message := cfg.Label
	if message == "" {
		message = cfg.Name
	}

	switch cfg.Type {
	case metadata.FieldTypeCheckbox:
		var out bool
		prompt := &survey.Confirm{Message: message, Default: snap.Value == true}
		if err := survey.AskOne(prompt, &out); err != nil {
			return nil, translateSurveyErr(err)
		}
		return out, nil

	case metadata.FieldTypeSelect, metadata.FieldTypeReference:
		if len(snap.Options) == 0 {
			return askInput(message, snap)
		}
		labels := make([]string, len(snap.Options))
		for i, option := range snap.Options {
			labels[i] = option.Label
			if labels[i] == "" {
				labels[i] = option.Value
			}
		}
		var out string
		prompt := &survey.Select{Message: message, Options: labels}
		if current := currentLabel(snap); current != "" {
			prompt.Default = current
		}
		if err := survey.AskOne(prompt, &out); err != nil {
			return nil, translateSurveyErr(err)
		}
		for i, label := range labels {
			if label == out {
				return snap.Options[i].Value, nil
			}
		}
		return out, nil

	case metadata.FieldTypeTextarea:
		var out string
		prompt := &survey.Multiline{Message: message, Default: fmt.Sprint(valueOrEmpty(snap))}
		if err := survey.AskOne(prompt, &out); err != nil {
			return nil, translateSurveyErr(err)
		}
		return out, nil

	default:
		return askInput(message, snap)
	}
}

func askInput(message string, snap session.FieldSnapshot) (any, error) {
	var out string
	prompt := &survey.Input{Message: message, Default: valueOrEmpty(snap)}
	if err := survey.AskOne(prompt, &out); err != nil {
		return nil, translateSurveyErr(err)
	}
	return out, nil
}

func currentLabel(snap session.FieldSnapshot) string {
	current := fmt.Sprint(valueOrEmpty(snap))
	for _, option := range snap.Options {
		if option.Value == current {
			if option.Label != "" {
				return option.Label
			}
			return option.Value
		}
	}
	return ""
}

func valueOrEmpty(snap session.FieldSnapshot) string {
	if snap.Value == nil {
		return ""
	}
	return fmt.Sprint(snap.Value)
}

func translateSurveyErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return ErrAborted
	}
	return err
}
