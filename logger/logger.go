// logger
/*
Copyright 2021 Bruce Golden and Matt Spangler

Permission is hereby granted, free of charge, to any person obtaining a copy of
this software and associated documentation files (the "Software"), to deal in
the Software without restriction, including without limitation the rights to
use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
of the Software, and to permit persons to whom the Software is furnished to do
so, subject to the following conditions:
The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/
package logger

import (
	"fmt"
	"log"
	"os"
	"strconv"
)

var OutputMode = "verbose" // verbose, table or quiet
var User = "admin"         // name of this user running this run
var Seed int64 = 1234      // Random number generator seed of this run

var Dir = "." // Directory the log file is written to

// Name of the log file for this run's seed
func FileName() string {
	return Dir + string(os.PathSeparator) + "log.epiSim." + strconv.FormatInt(Seed, 10)
}

// Verbose reports whether progress lines go to stdout
func Verbose() bool {
	return OutputMode == "verbose"
}

// Printf writes a progress line to stdout in verbose mode
func Printf(format string, a ...interface{}) {
	if Verbose() {
		fmt.Printf(format, a...)
	}
}

func LogWriter(message string) {
	f, err := os.OpenFile(FileName(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Println(err)
		return
	}
	defer f.Close()

	logger := log.New(f, "epiSim ", log.LstdFlags)
	logger.Println(User + ": " + message)
}

func LogWriterFatal(message string) {
	LogWriter(message)

	if OutputMode != "quiet" {
		fmt.Fprintln(os.Stderr, message)
	}
	os.Exit(1)
}
