package main

import "github.com/objcache/cachemgr/cmd"

func main() {
	cmd.Execute()
}
