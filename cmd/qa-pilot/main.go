// Command qa-pilot drives an Android app toward natural-language objectives
// with a vision model in the loop.
package main

import "github.com/devicelab-dev/qa-pilot/pkg/cli"

func main() {
	cli.Execute()
}
