// Command reverb_scope visualizes the reflection paths of a box room while
// playing the reverberated tone they produce. Move the listener with the
// arrow keys, turn with Q/E, toggle the diffusion engine with space and
// normal jitter with J.
package main

import (
	"encoding/binary"
	"fmt"
	"image/color"
	"log"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/claudioshg/hifi"
	"github.com/claudioshg/hifi/internal/audio"
	"github.com/claudioshg/hifi/internal/mixer"
)

const (
	screenSize = 640
	sampleRate = 48000

	roomWidth = 12.0
	roomDepth = 12.0

	moveStep = 0.06 // meters per tick
	turnStep = math.Pi / 120

	toneHz        = 220.0
	toneAmplitude = 6000

	bounceFade = 0.75
	earOffset  = 0.1
)

// Per-seed palette, axial seeds first, then the corner diagonals.
var seedColors = [14]color.RGBA{
	{204, 51, 204, 255}, // right
	{51, 204, 204, 255}, // left
	{204, 204, 51, 255}, // up
	{128, 128, 128, 255}, // down
	{51, 204, 51, 255},  // front
	{51, 51, 204, 255},  // back
	{255, 0, 0, 255},    // front-right-up
	{0, 255, 0, 255},    // front-left-up
	{0, 0, 255, 255},    // back-right-up
	{0, 255, 255, 255},  // back-left-up
	{255, 0, 255, 255},  // front-right-down
	{255, 255, 0, 255},  // front-left-down
	{255, 255, 255, 255}, // back-right-down
	{204, 51, 51, 255},  // back-left-down
}

var childColor = color.RGBA{96, 96, 96, 255}

type game struct {
	reflector *hifi.Reflector
	pose      *hifi.FixedPose
	mix       *mixer.Buffer
	player    *audio.Player

	yaw       float64
	tonePhase float64
	batch     []byte
}

func newGame() (*game, error) {
	room := hifi.NewBoxRoom(hifi.Vec3{}, roomWidth, 4, roomDepth)
	pose := &hifi.FixedPose{
		Orient:     hifi.IdentityQuat,
		HeadOrient: hifi.IdentityQuat,
	}
	mix := mixer.NewBuffer(sampleRate)

	params := hifi.DefaultParameters()
	params.StereoSource = true
	r, err := hifi.New(room, pose, mix, sampleRate, hifi.WithParameters(params))
	if err != nil {
		return nil, err
	}

	g := &game{
		reflector: r,
		pose:      pose,
		mix:       mix,
		batch:     make([]byte, sampleRate/60*4),
	}
	g.updateEars()

	player, err := audio.NewPlayer(sampleRate, mix)
	if err != nil {
		return nil, err
	}
	g.player = player
	player.Play()
	return g, nil
}

func (g *game) Update() error {
	g.handleKeys()
	g.reflector.Render()

	// One tick's worth of tone, anchored at the playhead; the engines
	// delay every contribution well past it.
	g.fillTone(g.batch)
	if err := g.reflector.AddSamples(g.batch, g.mix.SampleTime()); err != nil {
		return err
	}
	return nil
}

func (g *game) handleKeys() {
	if ebiten.IsKeyPressed(ebiten.KeyLeft) {
		g.pose.Pos.X -= moveStep
	}
	if ebiten.IsKeyPressed(ebiten.KeyRight) {
		g.pose.Pos.X += moveStep
	}
	if ebiten.IsKeyPressed(ebiten.KeyUp) {
		g.pose.Pos.Z -= moveStep
	}
	if ebiten.IsKeyPressed(ebiten.KeyDown) {
		g.pose.Pos.Z += moveStep
	}
	g.pose.Pos.X = clamp(g.pose.Pos.X, -roomWidth/2+0.5, roomWidth/2-0.5)
	g.pose.Pos.Z = clamp(g.pose.Pos.Z, -roomDepth/2+0.5, roomDepth/2-0.5)

	if ebiten.IsKeyPressed(ebiten.KeyQ) {
		g.yaw += turnStep
	}
	if ebiten.IsKeyPressed(ebiten.KeyE) {
		g.yaw -= turnStep
	}
	g.pose.Orient = hifi.Quat{W: math.Cos(g.yaw / 2), Y: math.Sin(g.yaw / 2)}
	g.pose.HeadOrient = g.pose.Orient
	g.updateEars()

	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		p := g.reflector.Parameters()
		p.WithDiffusion = !p.WithDiffusion
		if err := g.reflector.SetParameters(p); err != nil {
			log.Print(err)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyJ) {
		p := g.reflector.Parameters()
		p.JitterNormals = !p.JitterNormals
		if err := g.reflector.SetParameters(p); err != nil {
			log.Print(err)
		}
	}
}

func (g *game) updateEars() {
	right := g.pose.Orient.Rotate(hifi.Vec3{X: earOffset})
	g.pose.LeftEar = g.pose.Pos.Sub(right)
	g.pose.RightEar = g.pose.Pos.Add(right)
}

func (g *game) fillTone(dst []byte) {
	step := 2 * math.Pi * toneHz / sampleRate
	for off := 0; off+4 <= len(dst); off += 4 {
		v := int16(toneAmplitude * math.Sin(g.tonePhase))
		binary.LittleEndian.PutUint16(dst[off:], uint16(v))
		binary.LittleEndian.PutUint16(dst[off+2:], uint16(v))
		g.tonePhase += step
	}
	if g.tonePhase > 2*math.Pi {
		g.tonePhase -= 2 * math.Pi * math.Floor(g.tonePhase/(2*math.Pi))
	}
}

func (g *game) Draw(screen *ebiten.Image) {
	drawRoomOutline(screen)

	for _, line := range g.reflector.Paths() {
		base := childColor
		if !line.Child {
			base = seedColors[line.Seed]
		}
		fade := 1.0
		for i := 0; i+1 < len(line.Points); i++ {
			x0, y0 := project(line.Points[i])
			x1, y1 := project(line.Points[i+1])
			drawLine(screen, x0, y0, x1, y1, fadeColor(base, fade))
			fade *= bounceFade
		}
	}

	lx, ly := project(g.pose.Pos)
	for dy := -2; dy <= 2; dy++ {
		for dx := -2; dx <= 2; dx++ {
			screen.Set(lx+dx, ly+dy, color.RGBA{255, 64, 64, 255})
		}
	}

	stats := g.reflector.Stats()
	params := g.reflector.Parameters()
	engine := "chain"
	if params.WithDiffusion {
		engine = "diffusion"
	}
	msg := fmt.Sprintf("engine: %s (space)  jitter: %v (J)\npaths: %d  reflections: %d  capped: %d\ndelay: %.1f..%.1f ms",
		engine, params.JitterNormals, stats.TotalPaths, stats.Reflections, stats.CappedPaths,
		stats.MinDelayMs, stats.MaxDelayMs)
	ebitenutil.DebugPrint(screen, msg)
}

func (g *game) Layout(_, _ int) (int, int) { return screenSize, screenSize }

// project maps world X/Z onto the top-down view.
func project(p hifi.Vec3) (int, int) {
	scale := screenSize / (roomWidth + 2)
	return int((p.X + roomWidth/2 + 1) * scale), int((p.Z + roomDepth/2 + 1) * scale)
}

func drawRoomOutline(screen *ebiten.Image) {
	x0, y0 := project(hifi.Vec3{X: -roomWidth / 2, Z: -roomDepth / 2})
	x1, y1 := project(hifi.Vec3{X: roomWidth / 2, Z: roomDepth / 2})
	wall := color.RGBA{60, 80, 160, 255}
	drawLine(screen, x0, y0, x1, y0, wall)
	drawLine(screen, x1, y0, x1, y1, wall)
	drawLine(screen, x1, y1, x0, y1, wall)
	drawLine(screen, x0, y1, x0, y0, wall)
}

// drawLine plots a segment using Bresenham's integer algorithm.
func drawLine(screen *ebiten.Image, x0, y0, x1, y1 int, clr color.Color) {
	dx := int(math.Abs(float64(x1 - x0)))
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -int(math.Abs(float64(y1 - y0)))
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		if x0 >= 0 && x0 < screenSize && y0 >= 0 && y0 < screenSize {
			screen.Set(x0, y0, clr)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func fadeColor(c color.RGBA, fade float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * fade),
		G: uint8(float64(c.G) * fade),
		B: uint8(float64(c.B) * fade),
		A: c.A,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func main() {
	g, err := newGame()
	if err != nil {
		log.Fatal(err)
	}
	ebiten.SetWindowSize(screenSize, screenSize)
	ebiten.SetWindowTitle("reverb scope")
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
