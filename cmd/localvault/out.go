package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/TylerBrock/colorjson"
	"github.com/logrusorgru/aurora"
	"github.com/rcrowley/go-metrics"

	"github.com/keelann95/localvault"
)

var (
	TypeColor  = aurora.White
	TitleColor = aurora.Cyan
	Formatter  = colorjson.NewFormatter()

	w = tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
)

func init() {
	Formatter.Indent = 4
}

func MarshalToMap(obj interface{}) interface{} {
	var b []byte

	switch v := obj.(type) {
	case []byte:
		b = v
	default:
		bytes, err := json.Marshal(obj)
		if err != nil {
			panic(err)
		}
		b = bytes
	}

	var ret interface{}

	if err := json.Unmarshal(b, &ret); err != nil {
		// not JSON, print it as a string
		return string(b)
	}

	return ret
}

func PrintColoredJSON(msg string, obj interface{}) {
	obj = MarshalToMap(obj)

	PrintTitle(msg)
	w.Flush()

	b, err := Formatter.Marshal(obj)
	if err != nil {
		panic(err)
	}

	fmt.Println(string(b))
	fmt.Println()
}

func PrintTitle(name string) {
	fmt.Fprintln(w, aurora.Bold(TitleColor(name)))
}

func Print(name string, v1 interface{}) {
	printRow(TypeColor(name), v1)
}

func printRow(name aurora.Value, v1 interface{}) {
	_, _ = fmt.Fprintf(w, "\t%s\t%v\t\n", name, v1)
}

// PrintResult prints each decrypted record followed by the records that could not be read.
func PrintResult(r *localvault.Result) {
	for _, p := range r.Payloads {
		PrintColoredJSON(fmt.Sprintf("Record %d:", p.ID), p.Data)
	}

	if len(r.Failures) == 0 {
		return
	}

	PrintTitle("Undecryptable:")

	for _, f := range r.Failures {
		printRow(aurora.Red(fmt.Sprintf("%d", f.ID)), f.Kind)
	}

	w.Flush()
	fmt.Println()
}

func PrintMetrics(action string, timer metrics.Timer) {
	if timer.Count() == 0 {
		return
	}

	PrintTitle(strings.Title(action))
	Print("Mean:", time.Duration(timer.Mean()))
	Print("Total:", timer.Count())
	Print("Max:", time.Duration(timer.Max()))
	Print("Min:", time.Duration(timer.Min()))
	Print("Variance:", time.Duration(math.Round(timer.Variance()/float64(timer.Count()))))

	w.Flush()

	fmt.Println()
}

// PrintAllMetrics prints every timer in the default registry followed by the
// registry itself as JSON.
func PrintAllMetrics() {
	timers := make(map[string]metrics.Timer)

	metrics.DefaultRegistry.Each(func(name string, i interface{}) {
		if t, ok := i.(metrics.Timer); ok {
			timers[name] = t
		}
	})

	names := make([]string, 0, len(timers))
	for name := range timers {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		PrintMetrics(name, timers[name])
	}

	PrintColoredJSON("Metrics:", metrics.DefaultRegistry)
}
