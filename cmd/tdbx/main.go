// Command tdbx inspects and edits tdbx environments from the shell.
package main

import "os"

func main() {
	rc, err := Cli(os.Args[1:], NewCliConfig())
	if err != nil {
		os.Exit(1)
	}
	os.Exit(rc)
}
