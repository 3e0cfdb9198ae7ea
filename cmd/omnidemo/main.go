// Command omnidemo drives the engine end to end against a small synthetic
// container: start an animation action, stream its chunks through the
// controller into a video presenter, and run the cooperative scheduler
// until the presenter reaches Done. It has no real display or audio
// backend (spec.md's Non-goal); device.NullDisplay stands in for one.
package main

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/omni-engine/omni/internal/action"
	"github.com/omni-engine/omni/internal/container"
	"github.com/omni-engine/omni/internal/device"
	"github.com/omni-engine/omni/internal/logging"
	"github.com/omni-engine/omni/internal/notify"
	"github.com/omni-engine/omni/internal/omni"
	"github.com/omni-engine/omni/internal/omnibuf"
	"github.com/omni-engine/omni/internal/presenter"
	"github.com/omni-engine/omni/internal/subscriber"
)

const demoObjectID = 100

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	logger := logging.NewDefault("omnidemo")

	path, err := writeDemoContainer()
	if err != nil {
		return fmt.Errorf("omnidemo: building demo container: %w", err)
	}
	defer os.Remove(path)

	var listener eventLogger
	co, err := omni.New(logger, &listener)
	if err != nil {
		return fmt.Errorf("omnidemo: initializing coordinator: %w", err)
	}
	if err := co.StartHousekeeping("@every 1m"); err != nil {
		return fmt.Errorf("omnidemo: scheduling housekeeping: %w", err)
	}
	defer co.Stop()

	cacheDB, err := os.CreateTemp("", "omnidemo-dircache-*.sqlite")
	if err != nil {
		return fmt.Errorf("omnidemo: reserving directory cache file: %w", err)
	}
	cacheDB.Close()
	defer os.Remove(cacheDB.Name())

	dirs, err := container.NewDirectoryCache(cacheDB.Name(), time.Minute)
	if err != nil {
		return fmt.Errorf("omnidemo: opening directory cache: %w", err)
	}
	defer dirs.Close()
	co.SetDirectoryCache(dirs)

	// Rather than hand-building an action.Action, StartContainer opens the
	// container and decodes its one MxOb object via action.Parse.
	now := time.Now()
	actions, ctl, err := co.StartContainer(path, now)
	if err != nil {
		return fmt.Errorf("omnidemo: starting container: %w", err)
	}
	if len(actions) != 1 {
		return fmt.Errorf("omnidemo: expected exactly one decoded action, got %d", len(actions))
	}
	media, ok := actions[0].(action.MediaAction)
	if !ok {
		return fmt.Errorf("omnidemo: decoded action has unexpected type %T", actions[0])
	}

	sub := subscriber.New(demoObjectID, 0)
	ctl.AddSubscriber(sub)

	display := displayAdapter{d: device.NullDisplay{}, w: 64, h: 64}
	vp := presenter.NewVideoPresenter(media, 0, sub, display, co.Bus, co.Bus.Register(&listener), 500*time.Millisecond, nil)
	presenterHandle := co.Scheduler.Register(vp, omni.TickPeriod, now)
	if err := vp.Start(); err != nil {
		return fmt.Errorf("omnidemo: starting presenter: %w", err)
	}

	for i := 0; i < 200 && vp.State() != presenter.Done; i++ {
		now = now.Add(omni.TickPeriod)
		co.Tick(now)
	}

	co.Scheduler.Unregister(presenterHandle)
	ctl.RemoveSubscriber(sub)
	ctl.EndAction(demoObjectID)
	co.Bus.Drain()

	logger.Infof("demo finished: presenter reached state %s", vp.State())
	return nil
}

// displayAdapter narrows device.Display's w/h-aware Blit to the fixed
// w×h rectangle presenter.VideoOutput expects for one presenter instance.
type displayAdapter struct {
	d    device.Display
	w, h int32
}

func (a displayAdapter) Blit(x, y, z int32, frame []byte) error {
	return a.d.Blit(x, y, a.w, a.h, z, frame)
}

// eventLogger logs every notification it receives; it backs both the
// coordinator's and the demo presenter's bus registration, so its log
// output interleaves start/end-action and control notifications in
// delivery order.
type eventLogger struct{}

func (eventLogger) Notify(n notify.Notification) {
	fmt.Printf("notify: kind=%d sender=%d\n", n.Kind, n.Sender)
}

// writeDemoContainer synthesizes a minimal RIFF/OMNI container holding one
// MxOb action-tree object for demoObjectID (an Anim action, encoded with
// action.Encode so StartContainer's action.Parse path has something real to
// decode) followed by three MxCh stream chunks: two "frames" thirty-three
// milliseconds apart and a third carrying EndOfStream. Writes it to a temp
// file the RAM provider can open.
func writeDemoContainer() (string, error) {
	f, err := os.CreateTemp("", "omnidemo-*.si")
	if err != nil {
		return "", err
	}
	path := f.Name()
	f.Close()

	// SourceName mirrors the action's own container path, the way a
	// world file's MxDSObject entries name the .si/.smk they live in;
	// there is no circularity in practice since the coordinator already
	// knows which file it opened before it ever sees this field.
	clip := action.MediaAction{
		Meta: action.Meta{
			Type:       action.TypeAnim,
			ObjectID:   demoObjectID,
			ObjectName: "demo-clip",
			SourceName: path,
			SizeOnDisk: 1024,
		},
		Duration:  3 * 33 * time.Millisecond,
		LoopCount: 1,
	}

	frame := func(n int) []byte {
		return []byte(fmt.Sprintf("frame-%d-payload", n))
	}

	chunks := [][]byte{
		omnibuf.EncodeChunk(0, demoObjectID, 0, frame(0)),
		omnibuf.EncodeChunk(0, demoObjectID, 33, frame(1)),
		omnibuf.EncodeChunk(omnibuf.FlagEndOfSteam, demoObjectID, 66, frame(2)),
	}

	data := buildContainer(action.Encode(clip), chunks)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func riffChunk(id string, payload []byte) []byte {
	pad := len(payload) % 2
	out := make([]byte, 8+len(payload)+pad)
	copy(out[0:4], id)
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(payload)))
	copy(out[8:], payload)
	return out
}

func mxHdPayload(bufSize uint32, streamBufCount int16) []byte {
	p := make([]byte, 12)
	binary.LittleEndian.PutUint16(p[0:2], 2)
	binary.LittleEndian.PutUint16(p[2:4], 2)
	binary.LittleEndian.PutUint32(p[4:8], bufSize)
	binary.LittleEndian.PutUint16(p[8:10], uint16(streamBufCount))
	return p
}

// buildContainer assembles a RIFF/OMNI container with one MxHd header and
// a LIST/MxDa body holding one MxOb action object (objectPayload, an
// action.Encode result) followed by chunks, already encoded with their
// MxCh envelopes by omnibuf.EncodeChunk.
func buildContainer(objectPayload []byte, chunks [][]byte) []byte {
	mxHd := riffChunk("MxHd", mxHdPayload(4096, 4))

	listBody := append([]byte{}, []byte("MxDa")...)
	listBody = append(listBody, riffChunk("MxOb", objectPayload)...)
	for _, c := range chunks {
		listBody = append(listBody, riffChunk("MxCh", c[8:])...)
	}
	list := riffChunk("LIST", listBody)

	omniBody := append([]byte{}, []byte("OMNI")...)
	omniBody = append(omniBody, mxHd...)
	omniBody = append(omniBody, list...)

	return riffChunk("RIFF", omniBody)
}
