// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/natrelease/natrelease/cmd/natrelease"

func main() {
	cmd.Execute()
}
