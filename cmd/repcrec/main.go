package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/repcrec/repcrec/pkg/script"
	"github.com/repcrec/repcrec/pkg/txn"
)

var (
	flagHelp   bool
	flagFile   string
	flagRemote string
)

func init() {
	flag.BoolVar(&flagHelp, "help", false, "Show help")
	flag.BoolVar(&flagHelp, "h", false, "Show help (short)")
	flag.StringVar(&flagFile, "file", "", "Run commands from a script file instead of stdin")
	flag.StringVar(&flagRemote, "remote", "", "Send commands to a running repcrec-server instead of running locally (host:port)")
}

func main() {
	flag.Parse()

	if flagHelp {
		printHelp()
		os.Exit(0)
	}

	if flagRemote != "" {
		runRemote(flagRemote)
		return
	}

	var r *os.File
	if flagFile != "" {
		f, err := os.Open(flagFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", flagFile, err)
			os.Exit(1)
		}
		defer f.Close()
		r = f
	} else {
		r = os.Stdin
	}

	mgr := txn.NewManager()
	dispatcher := script.NewDispatcher()
	cmds := dispatcher.Parse(r)
	for _, line := range script.Run(mgr, cmds) {
		fmt.Println(line)
	}
}

func printHelp() {
	fmt.Print(`
repcrec - replicated concurrency control simulator

Usage:
  repcrec [options] < script.txt
  repcrec -file script.txt
  repcrec -remote host:port < script.txt

Options:
  -h, -help            Show this help message
  -file <path>         Read commands from a file instead of stdin
  -remote <host:port>  Send each command line to a running repcrec-server

Command syntax (one or more ';'-separated per line):
  begin(Tn)            start a read-write transaction
  beginRO(Tn)           start a read-only transaction
  R(Tn,xj)             read xj
  W(Tn,xj,v)            write v to xj
  end(Tn)               attempt to commit
  fail(i)               site i fails
  recover(i)             site i recovers
  dump()                print every site's resident variables
`)
}

func runRemote(addr string) {
	conn, err := dialAndAuth(addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to %s: %v\n", addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		events, err := sendRemoteLine(conn, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		for _, ev := range events {
			fmt.Println(ev)
		}
	}
}
