package main

import "github.com/goplus/trajbuild/cmd/trajbuild/internal"

func main() {
	internal.Execute()
}
