package main

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	ftp "github.com/myftpd/myftpd"
)

// verbHelp describes one request the shell understands.
type verbHelp struct {
	verb        string
	usage       string
	description string
}

var verbs = []verbHelp{
	{"USER", "USER <name>", "Send the user name"},
	{"PASS", "PASS <password>", "Send the password"},
	{"SYST", "SYST", "Show the server system type"},
	{"PWD", "PWD", "Print the remote working directory"},
	{"CWD", "CWD <dir>", "Change the remote working directory"},
	{"LIST", "LIST [path]", "List a remote directory or file"},
	{"RETR", "RETR <path>", "Download a file into the local directory"},
	{"STOR", "STOR <local file>", "Upload a local file under its base name"},
	{"SIZE", "SIZE <path>", "Show the size of a remote file"},
	{"DELE", "DELE <path>", "Delete a remote file"},
	{"RNFR", "RNFR <path>", "Select a file to rename"},
	{"RNTO", "RNTO <path>", "Rename the selected file"},
	{"TYPE", "TYPE <A|I>", "Set the transfer type"},
	{"MODE", "MODE S", "Set stream mode"},
	{"STRU", "STRU F", "Set file structure"},
	{"PORT", "PORT h1,h2,h3,h4,p1,p2", "Announce an active data address"},
	{"EPRT", "EPRT |1|host|port|", "Announce an extended active data address"},
	{"PASV", "PASV", "Request a passive data port"},
	{"EPSV", "EPSV", "Request an extended passive data port"},
	{"NOOP", "NOOP", "Do nothing"},
	{"QUIT", "QUIT", "Close the session and exit"},
	{"help", "help", "Show this table"},
}

// shell runs request lines against a connected client. Replies are echoed
// by printResponse, which the client calls for every reply it reads.
type shell struct {
	client   *ftp.Client
	out      io.Writer
	localDir string
	quit     bool
}

var (
	preliminaryColor = color.New(color.FgCyan)
	completionColor  = color.New(color.FgGreen)
	pendingColor     = color.New(color.FgYellow)
	failureColor     = color.New(color.FgRed)
)

// printResponse writes every line of r, colored by reply class.
func printResponse(out io.Writer, r *ftp.Response) {
	c := failureColor
	switch {
	case r.Is1xx():
		c = preliminaryColor
	case r.Is2xx():
		c = completionColor
	case r.Is3xx():
		c = pendingColor
	}
	for _, line := range r.Lines {
		_, _ = c.Fprintln(out, line)
	}
}

// execute handles one input line.
func (s *shell) execute(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	verb, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch strings.ToUpper(verb) {
	case "HELP":
		err = s.printHelp()
	case "LIST":
		var lines []string
		lines, err = s.client.List(arg)
		for _, l := range lines {
			fmt.Fprintln(s.out, l)
		}
	case "RETR":
		if arg == "" {
			err = errors.New("usage: RETR <path>")
			break
		}
		err = s.client.RetrieveTo(arg, s.localPath(filepath.Base(arg)))
	case "STOR":
		if arg == "" {
			err = errors.New("usage: STOR <local file>")
			break
		}
		err = s.client.StoreFrom(filepath.Base(arg), s.localPath(arg))
	case "QUIT":
		err = s.client.Quit()
		s.quit = true
	default:
		args := []string{}
		if arg != "" {
			args = append(args, arg)
		}
		_, err = s.client.Quote(verb, args...)
	}

	s.reportError(err)
}

// localPath resolves a local file name against the shell's directory.
func (s *shell) localPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.localDir, name)
}

// reportError prints errors the server did not already explain in a reply.
func (s *shell) reportError(err error) {
	if err == nil {
		return
	}
	var pe *ftp.ProtocolError
	if errors.As(err, &pe) {
		return
	}
	_, _ = failureColor.Fprintf(s.out, "error: %v\n", err)
}

func (s *shell) printHelp() error {
	table := tablewriter.NewWriter(s.out)
	table.Header("Verb", "Usage", "Description")
	for _, v := range verbs {
		if err := table.Append([]string{v.verb, v.usage, v.description}); err != nil {
			return errors.Wrap(err, "append help row failed")
		}
	}
	return table.Render()
}

// runScript executes lines from r until QUIT or end of input.
func (s *shell) runScript(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for !s.quit && scanner.Scan() {
		s.execute(scanner.Text())
	}
	return scanner.Err()
}

// runPrompt reads lines interactively with verb completion.
func (s *shell) runPrompt() {
	p := prompt.New(
		s.execute,
		completer,
		prompt.OptionPrefix("% "),
		prompt.OptionTitle("myftp"),
		prompt.OptionPrefixTextColor(prompt.Green),
		prompt.OptionPreviewSuggestionTextColor(prompt.Blue),
		prompt.OptionSelectedSuggestionBGColor(prompt.LightGray),
		prompt.OptionSuggestionBGColor(prompt.DarkGray),
		prompt.OptionSetExitCheckerOnInput(func(string, bool) bool {
			return s.quit
		}),
	)
	p.Run()
}

// completer suggests verbs for the first word only.
func completer(d prompt.Document) []prompt.Suggest {
	text := d.TextBeforeCursor()
	if strings.Contains(text, " ") {
		return nil
	}

	prefix := strings.ToUpper(text)
	var suggestions []prompt.Suggest
	for _, v := range verbs {
		if strings.HasPrefix(strings.ToUpper(v.verb), prefix) {
			suggestions = append(suggestions, prompt.Suggest{Text: v.verb, Description: v.description})
		}
	}
	return suggestions
}
