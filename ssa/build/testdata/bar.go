package main

func bar() {}
