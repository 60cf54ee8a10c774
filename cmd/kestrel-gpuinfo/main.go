// Command kestrel-gpuinfo probes the system GPU and reports whether it
// meets the engine's requirements.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	kestrel "github.com/kestrel-engine/kestrel"
	"github.com/kestrel-engine/kestrel/hal/wgpudevice"
)

func main() {
	var (
		minTexture = flag.Uint("min-texture", 4096, "required max 2D texture dimension")
		verbose    = flag.Bool("v", false, "enable engine log output")
	)
	flag.Parse()

	if *verbose {
		kestrel.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	ctx := wgpudevice.NewContext()
	if err := ctx.Init(); err != nil {
		log.Fatalf("GPU initialization failed: %v", err)
	}
	defer ctx.Close()

	if info := ctx.Info(); info != nil {
		fmt.Printf("Adapter:  %s\n", info.Name)
		fmt.Printf("Vendor:   %s\n", info.Vendor)
		fmt.Printf("Type:     %s\n", info.DeviceType)
		fmt.Printf("Backend:  %s\n", info.Backend)
		if info.Driver != "" {
			fmt.Printf("Driver:   %s\n", info.Driver)
		}
	}

	if err := ctx.CheckLimits(uint32(*minTexture)); err != nil {
		log.Fatalf("GPU does not meet requirements: %v", err)
	}
	fmt.Println("GPU meets engine requirements.")
}
