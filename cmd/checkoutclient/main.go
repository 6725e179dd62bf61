// checkoutclient is a CLI tool for exercising checkout attempts against a
// running checkout service. Each command performs a single operation,
// making it composable for scripts.
//
// Commands:
//
//	checkoutclient begin -service URL -request FILE
//	checkoutclient status -service URL -id <attempt-id>
//	checkoutclient watch -service URL -id <attempt-id>
//	checkoutclient window-closed -service URL -id <attempt-id>
//	checkoutclient cancel -service URL -id <attempt-id>
//
// Examples:
//
//	ID=$(checkoutclient begin -service http://localhost:8080 -request cart.json -q)
//	checkoutclient watch -service http://localhost:8080 -id $ID
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

var client = &http.Client{Timeout: 30 * time.Second}

// Global flags (apply to all commands)
var (
	serviceURL string
	quiet      bool
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "begin":
		runBegin(args)
	case "status":
		runStatus(args)
	case "watch":
		runWatch(args)
	case "window-closed":
		runWindowSignal(args, "window-closed")
	case "window-blocked":
		runWindowSignal(args, "window-blocked")
	case "cancel":
		runCancel(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `checkoutclient - drive checkout attempts against a checkout service

Commands:
  begin          Start an attempt from a request JSON file
  status         Show the current state of an attempt
  watch          Poll an attempt until it reaches a terminal state
  window-closed  Report that the payment window was closed
  window-blocked Report that the payment window never opened
  cancel         Abandon an attempt

Common flags:
  -service URL   Service base URL (default http://localhost:8080)
  -q             Print only the attempt ID / final status
`)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&serviceURL, "service", "http://localhost:8080", "service base URL")
	fs.BoolVar(&quiet, "q", false, "minimal output")
	return fs
}

func runBegin(args []string) {
	fs := newFlagSet("begin")
	requestFile := fs.String("request", "", "path to checkout request JSON")
	fs.Parse(args)

	if *requestFile == "" {
		fatal("begin requires -request FILE")
	}
	body, err := os.ReadFile(*requestFile)
	if err != nil {
		fatal("reading request file: %v", err)
	}

	var result map[string]any
	if err := post("/checkout/attempts", body, &result); err != nil {
		fatal("%v", err)
	}

	if quiet {
		fmt.Println(result["attempt_id"])
		return
	}
	printJSON(result)
}

func runStatus(args []string) {
	fs := newFlagSet("status")
	id := fs.String("id", "", "attempt ID")
	fs.Parse(args)
	requireID(*id)

	var result map[string]any
	if err := get("/checkout/attempts/"+*id, &result); err != nil {
		fatal("%v", err)
	}

	if quiet {
		fmt.Println(result["status"])
		return
	}
	printJSON(result)
}

func runWatch(args []string) {
	fs := newFlagSet("watch")
	id := fs.String("id", "", "attempt ID")
	interval := fs.Duration("interval", 3*time.Second, "poll interval")
	fs.Parse(args)
	requireID(*id)

	terminal := map[string]bool{
		"success":              true,
		"failed":               true,
		"pending_confirmation": true,
		"cancelled":            true,
	}

	for {
		var result map[string]any
		if err := get("/checkout/attempts/"+*id, &result); err != nil {
			fatal("%v", err)
		}
		status, _ := result["status"].(string)

		if terminal[status] {
			if quiet {
				fmt.Println(status)
			} else {
				printJSON(result)
			}
			if status != "success" {
				os.Exit(1)
			}
			return
		}

		if !quiet {
			fmt.Fprintf(os.Stderr, "status=%s polls=%v\n", status, result["poll_count"])
		}
		time.Sleep(*interval)
	}
}

func runWindowSignal(args []string, signal string) {
	fs := newFlagSet(signal)
	id := fs.String("id", "", "attempt ID")
	fs.Parse(args)
	requireID(*id)

	var result map[string]any
	if err := post("/checkout/attempts/"+*id+"/"+signal, nil, &result); err != nil {
		fatal("%v", err)
	}
	printJSON(result)
}

func runCancel(args []string) {
	fs := newFlagSet("cancel")
	id := fs.String("id", "", "attempt ID")
	fs.Parse(args)
	requireID(*id)

	var result map[string]any
	if err := post("/checkout/attempts/"+*id+"/cancel", nil, &result); err != nil {
		fatal("%v", err)
	}
	printJSON(result)
}

// === HTTP helpers ===

func get(path string, out any) error {
	resp, err := client.Get(serviceURL + path)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func post(path string, body []byte, out any) error {
	resp, err := client.Post(serviceURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("service returned %d: %s", resp.StatusCode, data)
	}
	return json.Unmarshal(data, out)
}

func requireID(id string) {
	if id == "" {
		fatal("missing -id flag")
	}
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
