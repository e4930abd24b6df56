// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

// Command babble is the operator CLI for a running babble-service:
// inspect presence, drive room membership, and exercise the chat
// actions from the shell.
//
//	babble --socket /run/babble/service.sock participants --team team-red
//	babble send --user user/ada --channel chan-general --content "hello"
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/babble-foundation/babble/rpc"
	"github.com/babble-foundation/babble/schema"
	"github.com/babble-foundation/babble/store"
)

const callTimeout = 30 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "babble:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	global := pflag.NewFlagSet("babble", pflag.ContinueOnError)
	socketPath := global.String("socket", "/run/babble/service.sock", "service socket path")
	global.SetInterspersed(false)
	if err := global.Parse(args); err != nil {
		return err
	}

	remaining := global.Args()
	if len(remaining) == 0 {
		return fmt.Errorf("usage: babble [--socket PATH] <command> [flags]\n%s", commandList)
	}

	client := rpc.NewClient(*socketPath)
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	command, commandArgs := remaining[0], remaining[1:]
	handler, ok := commands[command]
	if !ok {
		return fmt.Errorf("unknown command %q\n%s", command, commandList)
	}
	return handler(ctx, client, commandArgs)
}

const commandList = `commands:
  status        service liveness and uptime
  join          join a team's babble room
  leave         leave the babble room
  participants  list a room's participants
  typing        list who is typing in a channel
  send          send a message
  messages      list a channel's messages
  thread        show a thread's reply aggregate
  react         add or remove a reaction
  mute          mute or unmute a channel
  channels      list a team's channels`

type commandFunc func(ctx context.Context, client *rpc.Client, args []string) error

var commands = map[string]commandFunc{
	"status":       cmdStatus,
	"join":         cmdJoin,
	"leave":        cmdLeave,
	"participants": cmdParticipants,
	"typing":       cmdTyping,
	"send":         cmdSend,
	"messages":     cmdMessages,
	"thread":       cmdThread,
	"react":        cmdReact,
	"mute":         cmdMute,
	"channels":     cmdChannels,
}

// printYAML renders a result value for the terminal.
func printYAML(value any) error {
	encoded, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(encoded)
	return err
}

func cmdStatus(ctx context.Context, client *rpc.Client, args []string) error {
	flags := pflag.NewFlagSet("status", pflag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}

	var result struct {
		UptimeSeconds float64 `cbor:"uptime_seconds"`
	}
	if err := client.Call(ctx, "status", nil, &result); err != nil {
		return err
	}
	fmt.Printf("uptime: %s\n", time.Duration(result.UptimeSeconds*float64(time.Second)).Round(time.Second))
	return nil
}

func cmdJoin(ctx context.Context, client *rpc.Client, args []string) error {
	flags := pflag.NewFlagSet("join", pflag.ContinueOnError)
	user := flags.String("user", "", "acting user ID")
	team := flags.String("team", "", "team whose babble room to join")
	if err := flags.Parse(args); err != nil {
		return err
	}

	var result struct {
		Participants []schema.Participant `cbor:"participants"`
	}
	err := client.Call(ctx, "babble.join", map[string]any{
		"user": *user,
		"team": *team,
	}, &result)
	if err != nil {
		return err
	}
	return printYAML(result.Participants)
}

func cmdLeave(ctx context.Context, client *rpc.Client, args []string) error {
	flags := pflag.NewFlagSet("leave", pflag.ContinueOnError)
	user := flags.String("user", "", "acting user ID")
	if err := flags.Parse(args); err != nil {
		return err
	}
	return client.Call(ctx, "babble.leave", map[string]any{"user": *user}, nil)
}

func cmdParticipants(ctx context.Context, client *rpc.Client, args []string) error {
	flags := pflag.NewFlagSet("participants", pflag.ContinueOnError)
	user := flags.String("user", "", "acting user ID")
	team := flags.String("team", "", "team whose room to list")
	if err := flags.Parse(args); err != nil {
		return err
	}

	var result struct {
		Participants []schema.Participant `cbor:"participants"`
	}
	err := client.Call(ctx, "babble.participants", map[string]any{
		"user": *user,
		"team": *team,
	}, &result)
	if err != nil {
		return err
	}
	return printYAML(result.Participants)
}

func cmdTyping(ctx context.Context, client *rpc.Client, args []string) error {
	flags := pflag.NewFlagSet("typing", pflag.ContinueOnError)
	user := flags.String("user", "", "acting user ID")
	channel := flags.String("channel", "", "channel to inspect")
	if err := flags.Parse(args); err != nil {
		return err
	}

	var result struct {
		Typing []schema.TypingStatus `cbor:"typing"`
	}
	err := client.Call(ctx, "typing.list", map[string]any{
		"user":    *user,
		"channel": *channel,
	}, &result)
	if err != nil {
		return err
	}
	return printYAML(result.Typing)
}

func cmdSend(ctx context.Context, client *rpc.Client, args []string) error {
	flags := pflag.NewFlagSet("send", pflag.ContinueOnError)
	user := flags.String("user", "", "acting user ID")
	channel := flags.String("channel", "", "target channel")
	content := flags.String("content", "", "message body")
	parent := flags.String("parent", "", "parent message ID for a thread reply")
	if err := flags.Parse(args); err != nil {
		return err
	}

	var result struct {
		Message schema.Message `cbor:"message"`
	}
	err := client.Call(ctx, "message.send", map[string]any{
		"user":      *user,
		"channel":   *channel,
		"content":   *content,
		"parent_id": *parent,
	}, &result)
	if err != nil {
		return err
	}
	fmt.Println(result.Message.ID)
	return nil
}

func cmdMessages(ctx context.Context, client *rpc.Client, args []string) error {
	flags := pflag.NewFlagSet("messages", pflag.ContinueOnError)
	user := flags.String("user", "", "acting user ID")
	channel := flags.String("channel", "", "channel to list")
	limit := flags.Int("limit", 50, "maximum messages to return")
	if err := flags.Parse(args); err != nil {
		return err
	}

	var result struct {
		Messages []schema.Message `cbor:"messages"`
	}
	err := client.Call(ctx, "message.list", map[string]any{
		"user":    *user,
		"channel": *channel,
		"limit":   *limit,
	}, &result)
	if err != nil {
		return err
	}
	return printYAML(result.Messages)
}

func cmdThread(ctx context.Context, client *rpc.Client, args []string) error {
	flags := pflag.NewFlagSet("thread", pflag.ContinueOnError)
	user := flags.String("user", "", "acting user ID")
	parent := flags.String("parent", "", "parent message ID")
	if err := flags.Parse(args); err != nil {
		return err
	}

	var result struct {
		Thread schema.ThreadInfo `cbor:"thread"`
	}
	err := client.Call(ctx, "thread.info", map[string]any{
		"user":   *user,
		"parent": *parent,
	}, &result)
	if err != nil {
		return err
	}
	return printYAML(result.Thread)
}

func cmdReact(ctx context.Context, client *rpc.Client, args []string) error {
	flags := pflag.NewFlagSet("react", pflag.ContinueOnError)
	user := flags.String("user", "", "acting user ID")
	message := flags.String("message", "", "message ID")
	emoji := flags.String("emoji", "", "emoji to react with")
	remove := flags.Bool("remove", false, "remove the reaction instead of adding it")
	if err := flags.Parse(args); err != nil {
		return err
	}

	action := "reaction.add"
	if *remove {
		action = "reaction.remove"
	}
	return client.Call(ctx, action, map[string]any{
		"user":       *user,
		"message_id": *message,
		"emoji":      *emoji,
	}, nil)
}

func cmdMute(ctx context.Context, client *rpc.Client, args []string) error {
	flags := pflag.NewFlagSet("mute", pflag.ContinueOnError)
	user := flags.String("user", "", "acting user ID")
	channel := flags.String("channel", "", "channel to mute")
	unmute := flags.Bool("unmute", false, "clear the mute instead of setting it")
	if err := flags.Parse(args); err != nil {
		return err
	}

	return client.Call(ctx, "channel.mute", map[string]any{
		"user":    *user,
		"channel": *channel,
		"muted":   !*unmute,
	}, nil)
}

func cmdChannels(ctx context.Context, client *rpc.Client, args []string) error {
	flags := pflag.NewFlagSet("channels", pflag.ContinueOnError)
	user := flags.String("user", "", "acting user ID")
	team := flags.String("team", "", "team whose channels to list")
	if err := flags.Parse(args); err != nil {
		return err
	}

	var result struct {
		Channels []store.Channel `cbor:"channels"`
	}
	err := client.Call(ctx, "channel.list", map[string]any{
		"user": *user,
		"team": *team,
	}, &result)
	if err != nil {
		return err
	}
	return printYAML(result.Channels)
}
