package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/JohnPlummer/priority-scorer/triage"
)

func inputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     inputFlagName,
		Usage:    "Path to a JSON or YAML array of messages",
		Required: true,
	}
}

func rankCmd() *cli.Command {
	return &cli.Command{
		Name:   "rank",
		Usage:  "Rank messages from highest to lowest priority",
		Flags:  append([]cli.Flag{inputFlag()}, scoringFlags()...),
		Action: cmdRank,
	}
}

func explainCmd() *cli.Command {
	return &cli.Command{
		Name:  "explain",
		Usage: "Show the score breakdown of a single message",
		Flags: append([]cli.Flag{
			inputFlag(),
			&cli.StringFlag{
				Name:     idFlagName,
				Usage:    "ID of the message to explain",
				Required: true,
			},
		}, scoringFlags()...),
		Action: cmdExplain,
	}
}

func cmdRank(ctx context.Context, cmd *cli.Command) error {
	msgs, err := loadMessages(cmd.String(inputFlagName))
	if err != nil {
		return err
	}

	p, err := buildPipeline(cmd, false)
	if err != nil {
		return err
	}
	defer p.Close()

	outcomes, err := p.triager.Prioritize(ctx, msgs)
	if err != nil {
		return err
	}

	return encode(cmd, outcomes)
}

func cmdExplain(ctx context.Context, cmd *cli.Command) error {
	msgs, err := loadMessages(cmd.String(inputFlagName))
	if err != nil {
		return err
	}

	p, err := buildPipeline(cmd, false, triage.WithStore(triage.NewMemoryStore(msgs...)))
	if err != nil {
		return err
	}
	defer p.Close()

	outcome, err := p.triager.Explain(ctx, cmd.String(idFlagName))
	if err != nil {
		return err
	}

	return encode(cmd, outcome)
}
