package main

import "github.com/tpaquier/opera/examples"

func main() {
	examples.BOAForecast()
}
