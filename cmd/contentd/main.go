package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "contentd"}

	root.AddCommand(serveCMD(), migrateCMD(), importCMD(), generateCMD(), tokenCMD())
	_ = root.Execute()
}
