//go:build !unix

package main

func ignoreSigpipe() {}
