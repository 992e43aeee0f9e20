// Command entropyctl is the control CLI for entropyd: it connects to one
// of the daemon's control sockets and issues GetIDs, ReportStats,
// GetRawData, and SetLogVerbosity requests.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"entropyd/internal/jsonvalue"
)

var (
	socketAddr = flag.String("socket", defaultSocket(), "control socket address (unix path or tcp:host:port)")
	authToken  = flag.String("token", os.Getenv("ENTROPYD_TOKEN"), "bearer token for a TCP control socket")
	noColor    = flag.Bool("no-color", os.Getenv("NO_COLOR") != "", "disable colored output")
)

func defaultSocket() string {
	if a := os.Getenv("ENTROPYD_SOCKET"); a != "" {
		return a
	}
	return "/run/entropyd/control.sock"
}

type colors struct {
	Reset, Bold, Dim, Red, Green, Yellow, Cyan string
}

var c colors

func initColors() {
	if *noColor {
		c = colors{}
		return
	}
	c = colors{
		Reset: "\033[0m", Bold: "\033[1m", Dim: "\033[2m",
		Red: "\033[31m", Green: "\033[32m", Yellow: "\033[33m", Cyan: "\033[36m",
	}
}

func printSection(title string) {
	fmt.Printf("\n%s%s%s\n", c.Bold+c.Cyan, title, c.Reset)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "entropyctl: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	flag.Parse()
	initColors()

	if flag.NArg() == 0 {
		usage()
		os.Exit(1)
	}

	client, err := Dial(*socketAddr, *authToken)
	if err != nil {
		fatalf("%v", err)
	}
	defer client.Close()

	switch flag.Arg(0) {
	case "ids":
		cmdIDs(client)
	case "stats":
		cmdStats(client, flag.Args()[1:])
	case "raw":
		cmdRaw(client, flag.Args()[1:])
	case "verbosity":
		cmdVerbosity(client, flag.Args()[1:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: entropyctl [-socket addr] [-token t] <ids|stats [id]|raw [id]|verbosity <level>>")
}

func cmdIDs(client *Client) {
	resp, err := client.Call("GetIDs")
	if err != nil {
		fatalf("%v", err)
	}
	ids := replyPayload(resp)
	printSection("SOURCE IDS")
	for _, v := range ids.AsArray() {
		fmt.Printf("  %s\n", v.AsString())
	}
}

func cmdStats(client *Client, args []string) {
	var call []jsonvalue.Value
	if len(args) > 0 {
		call = append(call, jsonvalue.String(args[0]))
	}
	resp, err := client.Call("ReportStats", call...)
	if err != nil {
		fatalf("%v", err)
	}
	printStats(replyPayload(resp))
}

func cmdRaw(client *Client, args []string) {
	var call []jsonvalue.Value
	if len(args) > 0 {
		call = append(call, jsonvalue.String(args[0]))
	}
	resp, err := client.Call("GetRawData", call...)
	if err != nil {
		fatalf("%v", err)
	}
	printRaw(replyPayload(resp))
}

func cmdVerbosity(client *Client, args []string) {
	if len(args) == 0 {
		fatalf("verbosity requires a level argument")
	}
	n, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fatalf("invalid level %q: %v", args[0], err)
	}
	resp, err := client.Call("SetLogVerbosity", jsonvalue.Int(n))
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("%slog level set to%s %d\n", c.Dim, c.Reset, replyPayload(resp).AsInt())
}

// replyPayload extracts the third element of a [command, token, payload]
// envelope.
func replyPayload(v jsonvalue.Value) jsonvalue.Value {
	arr := v.AsArray()
	if len(arr) < 3 {
		return jsonvalue.Null()
	}
	return arr[2]
}

func printStats(payload jsonvalue.Value) {
	obj := payload.AsObject()
	if obj == nil {
		fmt.Println("(no data)")
		return
	}
	for _, id := range obj.Keys() {
		v, _ := obj.Get(id)
		s := v.AsObject()
		printSection(id)
		qa, _ := s.Get("QA")
		fips, _ := s.Get("FIPS")
		bytesAnalysed, _ := s.Get("BytesAnalysed")
		bytesPassed, _ := s.Get("BytesPassed")
		fmt.Printf("  %sQA%s    %s\n", c.Dim, c.Reset, boolLabel(qa.AsBool()))
		fmt.Printf("  %sFIPS%s  %s\n", c.Dim, c.Reset, boolLabel(fips.AsBool()))
		fmt.Printf("  %sBytesAnalysed%s %d\n", c.Dim, c.Reset, int64(bytesAnalysed.AsNumber()))
		fmt.Printf("  %sBytesPassed%s   %d\n", c.Dim, c.Reset, int64(bytesPassed.AsNumber()))
	}
}

func printRaw(payload jsonvalue.Value) {
	obj := payload.AsObject()
	if obj == nil {
		fmt.Println("(no data)")
		return
	}
	for _, id := range obj.Keys() {
		v, _ := obj.Get(id)
		printSection(id)
		fmt.Println(jsonvalue.Encode(v))
	}
}

func boolLabel(ok bool) string {
	if ok {
		return c.Green + "OK" + c.Reset
	}
	return c.Red + "FAIL" + c.Reset
}
