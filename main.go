// The main package for the jobs-crawler executable.
package main

import "github.com/chainboard/jobs-crawler/cmd"

func main() {
	cmd.Execute()
}
