package cmd

import "fmt"

const banner = `
  ___     _       _
 / __|__ _| |_ ___| |_  ___ _  _ ___ ___
| (_ / _' |  _/ -_) ' \/ _ \ || (_-</ -_)
 \___\__,_|\__\___|_||_\___/\_,_/__/\___|
`

func printBanner() {
	fmt.Print(banner)
}
