package main

import "github.com/Togather-Foundation/sitelens/cmd/server/cmd"

func main() {
	cmd.Execute()
}
