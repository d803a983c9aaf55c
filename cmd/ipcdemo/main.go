// Command ipcdemo wires a Listener and a Client together over the websocket
// demonstration transport, and round-trips one Echo call through the full
// connection broker rendezvous: the client connects to the listener,
// requests a private channel, disconnects from the listener, and connects
// to the private channel before making the call.
package main

import (
	"fmt"
	"os"

	"github.com/op/go-logging"

	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000"
	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000/ipcconnect"
	"github.com/eclipse-openvehicle-api/openvehicle-api-sub000/transport/wsloop"
)

const connectTimeoutMs = 3000

func main() {
	ipccom.SetupLogging(logging.INFO)

	control := ipccom.NewControl(demoRepository())
	if err := control.Initialize(); err != nil {
		fail(err)
	}
	control.RegisterTransport("Local", wsloop.Factory{})
	control.RegisterTransport("Remote", wsloop.Factory{})
	defer control.Shutdown()

	// The demo uses "Remote" (TCP) on a fixed, known port for both ends: a
	// "Local" listener binds an ephemeral port, which a client cannot
	// address without some separate discovery step this demo does not
	// implement.
	listenerCfg := `
[Listener]
Type = "Remote"
Interface = "127.0.0.1"
Port = 17777
`
	listener, err := ipcconnect.NewListener(control, listenerCfg, echoInterfaceID, echoImpl{})
	if err != nil {
		fail(err)
	}
	defer listener.Close()
	if err := control.Run(); err != nil {
		fail(err)
	}

	clientCfg := `
[Client]
Type = "Remote"
Interface = "127.0.0.1"
Port = 17777
`
	client, err := ipcconnect.Connect(control, clientCfg, echoInterfaceID, connectTimeoutMs)
	if err != nil {
		fail(err)
	}
	defer client.Close()

	echo, ok := client.Repository().(Echo)
	if !ok {
		fail(fmt.Errorf("ipcdemo: repository proxy does not implement Echo"))
	}

	result, err := echo.Echo("hello from ipcdemo")
	if err != nil {
		fail(err)
	}
	fmt.Println(result)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "ipcdemo:", err)
	os.Exit(1)
}
