/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "dxmsg/cmd"

func main() {
	cmd.Execute()
}
