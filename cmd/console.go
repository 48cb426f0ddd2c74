package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"

	"linkfetch/session"
	"linkfetch/utils"
)

// isInteractive reports whether prompts and live bars can be used
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// promptSelection asks for a selection expression over the listing
func promptSelection(entries []session.Entry) (string, error) {
	prompt := promptui.Prompt{
		Label:   fmt.Sprintf("Select entries to download (0-%d, e.g. 1,3,5-7)", len(entries)-1),
		Default: "0",
		Validate: func(input string) error {
			sel, err := utils.ParseSelection(input)
			if err != nil {
				return err
			}
			for _, i := range sel.Sorted() {
				if i >= len(entries) {
					return fmt.Errorf("index %d is out of range", i)
				}
			}
			return nil
		},
	}
	return prompt.Run()
}

// confirm asks a yes/no question. A declined prompt is not an error.
func confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := prompt.Run()
	if errors.Is(err, promptui.ErrAbort) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// pickEntry lets the user choose one listing entry
func pickEntry(entries []session.Entry) (session.Entry, error) {
	if len(entries) == 0 {
		return session.Entry{}, errors.New("nothing to choose from")
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}?",
		Active:   "\U0001F449 {{ .Index }} {{ .Name | cyan }}",
		Inactive: "  {{ .Index }} {{ .Name | white }}",
		Selected: "\U0001F44D {{ .Name | green }}",
	}

	prompt := promptui.Select{
		Label:     "Select entry",
		Items:     entries,
		Templates: templates,
		Size:      10,
		Searcher: func(input string, index int) bool {
			name := strings.ToLower(entries[index].Name)
			return strings.Contains(name, strings.ToLower(strings.TrimSpace(input)))
		},
	}

	i, _, err := prompt.Run()
	if err != nil {
		return session.Entry{}, err
	}
	return entries[i], nil
}
