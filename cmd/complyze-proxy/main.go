// Command complyze-proxy is the loopback HTTPS interception proxy and DLP
// enforcement point for AI-provider traffic.
package main

import "github.com/complyze/ai-proxy/cmd/complyze-proxy/cmd"

func main() {
	cmd.Execute()
}
