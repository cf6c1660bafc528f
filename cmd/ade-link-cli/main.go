package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/0xADE/ade-linkd/client/linkd"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <command> [args...]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  list                 - List all links\n")
		fmt.Fprintf(os.Stderr, "  category <tag>       - List links in a category\n")
		fmt.Fprintf(os.Stderr, "  run <id>             - Launch a link by ID\n")
		fmt.Fprintf(os.Stderr, "  lang                 - Show the daemon locale\n")
		fmt.Fprintf(os.Stderr, "  stats                - Show link and category counts\n")
		fmt.Fprintf(os.Stderr, "  interactive          - Interactive mode\n")
		os.Exit(1)
	}

	// Create client
	client, err := linkd.NewClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	cmd := os.Args[1]

	if cmd == "interactive" {
		runInteractive(client)
		return
	}

	if err := execute(client, cmd, os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func execute(client *linkd.Client, cmd string, args []string) error {
	switch cmd {
	case "list":
		links, err := client.List()
		if err != nil {
			return err
		}
		for _, l := range links {
			fmt.Printf("%s\t%s\n", l.ID, l.Name)
		}
	case "category":
		if len(args) < 1 {
			return fmt.Errorf("usage: category <tag>")
		}
		links, err := client.Category(args[0])
		if err != nil {
			return err
		}
		for _, l := range links {
			fmt.Printf("%s\t%s\n", l.ID, l.Name)
		}
	case "run":
		if len(args) < 1 {
			return fmt.Errorf("usage: run <id>")
		}
		if err := client.Run(args[0]); err != nil {
			return err
		}
		fmt.Println("ok")
	case "lang":
		lang, err := client.Lang()
		if err != nil {
			return err
		}
		fmt.Println(lang)
	case "stats":
		links, stats, err := client.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("links: %d\n", links)
		for _, s := range stats {
			fmt.Printf("%s\t%d\n", s.Tag, s.Count)
		}
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
	return nil
}

func runInteractive(client *linkd.Client) {
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("Interactive mode. Type commands or 'exit' to quit.")
	fmt.Print("> ")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "exit" || line == "quit" {
			break
		}

		if line == "" {
			fmt.Print("> ")
			continue
		}

		parts := strings.Fields(line)
		if err := execute(client, parts[0], parts[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}

		fmt.Print("> ")
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
	}
}
