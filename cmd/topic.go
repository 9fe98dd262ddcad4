package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/tradesim"
	"github.com/etnz/tradesim/config"
	"github.com/etnz/tradesim/docs"
	"github.com/google/subcommands"
)

type topicCmd struct {
	list bool
}

func (*topicCmd) Name() string     { return "topic" }
func (*topicCmd) Synopsis() string { return "show documentation" }
func (*topicCmd) Usage() string {
	return `tradesim topic [-list] [<topic>...]

  Shows the documentation of the topics, the index by default, or every
  topic with '*'.
`
}

func (c *topicCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.list, "list", false, "Print the topic names only")
}

func (c *topicCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.list {
		names, err := docs.GetAllTopics()
		if err != nil {
			fmt.Fprintln(os.Stderr, friendly(err, config.LogFile))
			return subcommands.ExitFailure
		}
		fmt.Println(strings.Join(names, "\n"))
		return subcommands.ExitSuccess
	}

	md, err := topicMarkdown(f.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, friendly(err, config.LogFile))
		return subcommands.ExitUsageError
	}
	printMarkdown(md)
	return subcommands.ExitSuccess
}

// topicMarkdown concatenates the named topics, the index when none is named.
func topicMarkdown(names []string) (string, error) {
	if len(names) == 0 {
		names = []string{docs.Index}
	}
	md, err := docs.GetTopics(names...)
	if err != nil {
		return "", &tradesim.Error{Kind: tradesim.Validation, Err: err}
	}
	return md, nil
}
