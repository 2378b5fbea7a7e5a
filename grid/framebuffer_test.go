package grid

import (
	"os/exec"
	"testing"
	"time"

	"github.com/BurntSushi/xgbutil"
	"github.com/google/go-cmp/cmp"
)

func TestStartFrameBuffer(t *testing.T) {
	if _, err := exec.LookPath("Xvfb"); err != nil {
		t.Skip("Skipping frame buffer tests: Xvfb not installed")
	}
	tests := []struct {
		desc          string
		size          string
		width, height int
	}{
		// The default Xvfb screen size is "1280x1024x8".
		{desc: "default size", width: 1280, height: 1024},
		{desc: "with screen size", size: "1024x768x24", width: 1024, height: 768},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			p := &Process{}
			if err := StartFrameBuffer(test.size)(p); err != nil {
				t.Fatalf("StartFrameBuffer(%q) returned error: %v", test.size, err)
			}
			defer p.stopFrameBuffer()
			if err := StartFrameBuffer(test.size)(p); err == nil {
				t.Errorf("second StartFrameBuffer() returned nil error")
			}

			d, err := xgbutil.NewConnDisplay(":" + p.xvfb.Display)
			if err != nil {
				t.Fatalf("could not connect to display %q: %v", p.xvfb.Display, err)
			}
			// Closing the connection right before the frame buffer races with
			// Xvfb's shutdown.
			defer time.Sleep(2 * time.Second)
			defer d.Conn().Close()
			s := d.Screen()
			if diff := cmp.Diff([]int{test.width, test.height}, []int{int(s.WidthInPixels), int(s.HeightInPixels)}); diff != "" {
				t.Errorf("screen size returned diff (-want/+got):\n%s", diff)
			}
		})
	}

	if err := StartFrameBuffer("not a screen size")(&Process{}); err == nil {
		t.Errorf("StartFrameBuffer() with a bad screen size returned nil error")
	}
}
