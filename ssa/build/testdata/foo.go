package main

func foo(i int) int {
	if i%2 == 0 {
		return i
	}
	return -i
}
