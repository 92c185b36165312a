package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"

	"bilheteria-cli/model"
	"bilheteria-cli/service"
)

const (
	envStatePassphrase = "BILHETERIA_STATE_PASSPHRASE"
	envKeyPassphrase   = "BILHETERIA_KEY_PASSPHRASE"
	envAdminPassword   = "BILHETERIA_ADMIN_PASSWORD"
)

var errNoConfirmation = errors.New("confirmation required: pass --yes")

// prompter asks the operator for input. On a terminal it uses masked
// promptui prompts; otherwise secrets are read one line at a time from
// stdin and interactive questions fail.
type prompter struct {
	lines       *bufio.Reader
	out         io.Writer
	interactive bool
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}
	return &prompter{lines: bufio.NewReader(in), out: out, interactive: interactive}
}

func notEmpty(input string) error {
	if strings.TrimSpace(input) == "" {
		return errors.New("value is required")
	}
	return nil
}

// secret returns envVar when set. New secrets are typed twice on a terminal.
func (p *prompter) secret(envVar, label string, confirm bool) (string, error) {
	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}

	if !p.interactive {
		line, err := p.readLine()
		if err != nil {
			return "", fmt.Errorf("reading %s from stdin (or set %s): %w", strings.ToLower(label), envVar, err)
		}
		if line == "" {
			return "", fmt.Errorf("%s is empty", strings.ToLower(label))
		}
		return line, nil
	}

	first, err := p.masked(label)
	if err != nil {
		return "", err
	}
	if !confirm {
		return first, nil
	}
	second, err := p.masked("Confirm " + strings.ToLower(label))
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("%s confirmation does not match", strings.ToLower(label))
	}
	return first, nil
}

func (p *prompter) masked(label string) (string, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Mask:     '*',
		Validate: notEmpty,
	}
	value, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
	}
	return value, nil
}

func (p *prompter) readLine() (string, error) {
	line, err := p.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// text returns value, or asks for it on a terminal.
func (p *prompter) text(label, flag, value string) (string, error) {
	if strings.TrimSpace(value) != "" {
		return value, nil
	}
	if !p.interactive {
		return "", fmt.Errorf("--%s is required", flag)
	}
	prompt := promptui.Prompt{Label: label, Validate: notEmpty}
	return prompt.Run()
}

// confirm asks a yes/no question. yes skips the question; without a
// terminal it is required.
func (p *prompter) confirm(label string, yes bool) error {
	if yes {
		return nil
	}
	if !p.interactive {
		return errNoConfirmation
	}
	prompt := promptui.Prompt{Label: label, IsConfirm: true}
	if _, err := prompt.Run(); err != nil {
		return fmt.Errorf("cancelled: %w", err)
	}
	return nil
}

// room returns number when set, or lets the operator pick from rooms.
func (p *prompter) room(label string, number int, rooms []model.Room) (int, error) {
	if number > 0 {
		return number, nil
	}
	if !p.interactive {
		return 0, errors.New("--room is required")
	}

	items := make([]string, len(rooms))
	for i, room := range rooms {
		items[i] = roomLabel(room)
	}
	selectRoom := promptui.Select{
		Label: label,
		Items: items,
		Size:  10,
	}
	index, _, err := selectRoom.Run()
	if err != nil {
		return 0, fmt.Errorf("selecting room: %w", err)
	}
	return rooms[index].Number, nil
}

func roomLabel(room model.Room) string {
	if room.Empty() {
		return fmt.Sprintf("Room %d (empty)", room.Number)
	}
	s := room.Screening
	return fmt.Sprintf("Room %d: %s, %d seats, until %s", room.Number, s.Title, s.Seats, service.FormatDate(s.ClosingDate))
}

// minimumAge parses an age typed at a prompt.
func (p *prompter) minimumAge(value int, set bool) (int, error) {
	if set || !p.interactive {
		return value, nil
	}
	prompt := promptui.Prompt{
		Label:   "Minimum age",
		Default: "0",
		Validate: func(input string) error {
			n, err := strconv.Atoi(strings.TrimSpace(input))
			if err != nil || n < 0 {
				return errors.New("enter a non-negative number")
			}
			return nil
		},
	}
	input, err := prompt.Run()
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(input))
}
