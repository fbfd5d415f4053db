package main

import "github.com/fatih/color"

var (
	hashC    = color.New(color.FgYellow)
	successC = color.New(color.FgGreen)
	warningC = color.New(color.FgYellow, color.Bold)
	failureC = color.New(color.FgRed)
	faintC   = color.New(color.Faint)
	boldC    = color.New(color.Bold)
)
