package main

func sum(n int) int {
	s := 0
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			s += i
		}
	}
	return s
}

func pick(a, b bool) int {
	x := 0
	if a {
		x = 1
		if b {
			x = 2
		}
	}
	return x
}

func main() {
	println(sum(10), pick(true, false))
}
