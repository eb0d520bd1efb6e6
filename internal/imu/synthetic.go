package imu

import (
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"
)

// SyntheticConfig describes a stationary device: constant gyro offset and
// gravity, each axis perturbed by independent zero-mean Gaussian noise.
type SyntheticConfig struct {
	GyroOffset r3.Vec  // deg/s, what calibration should recover as bias
	Gravity    r3.Vec  // defaults to (0, 9.81, 0)
	GyroSigma  float64 // deg/s
	AccSigma   float64
	// ReadyEvery makes Read report a sample on every Nth poll only. Zero and
	// one mean every poll.
	ReadyEvery int
	Seed       uint64
}

// DefaultSyntheticConfig returns noise figures of the order measured on a
// VRduino board at rest.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		GyroOffset: r3.Vec{X: 0.23206, Y: -0.22437, Z: 0.12708},
		Gravity:    r3.Vec{Y: 9.81},
		GyroSigma:  0.2,
		AccSigma:   0.04,
		Seed:       1,
	}
}

// Synthetic generates readings for a stationary device. It implements Reader.
type Synthetic struct {
	mu    sync.Mutex
	cfg   SyntheticConfig
	gyr   [3]distuv.Normal
	acc   [3]distuv.Normal
	polls int
}

// NewSynthetic creates a generator. Identical configs produce identical streams.
func NewSynthetic(cfg SyntheticConfig) *Synthetic {
	if cfg.Gravity == (r3.Vec{}) {
		cfg.Gravity = r3.Vec{Y: 9.81}
	}
	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	normal := func(mu, sigma float64) distuv.Normal {
		return distuv.Normal{Mu: mu, Sigma: sigma, Src: src}
	}
	return &Synthetic{
		cfg: cfg,
		gyr: [3]distuv.Normal{
			normal(cfg.GyroOffset.X, cfg.GyroSigma),
			normal(cfg.GyroOffset.Y, cfg.GyroSigma),
			normal(cfg.GyroOffset.Z, cfg.GyroSigma),
		},
		acc: [3]distuv.Normal{
			normal(cfg.Gravity.X, cfg.AccSigma),
			normal(cfg.Gravity.Y, cfg.AccSigma),
			normal(cfg.Gravity.Z, cfg.AccSigma),
		},
	}
}

// Config returns the generator configuration.
func (s *Synthetic) Config() SyntheticConfig {
	return s.cfg
}

// Sample draws one reading.
func (s *Synthetic) Sample() Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sample()
}

func (s *Synthetic) sample() Reading {
	return Reading{
		Gyr: r3.Vec{X: s.gyr[0].Rand(), Y: s.gyr[1].Rand(), Z: s.gyr[2].Rand()},
		Acc: r3.Vec{X: s.acc[0].Rand(), Y: s.acc[1].Rand(), Z: s.acc[2].Rand()},
	}
}

// Read reports a new sample every ReadyEvery polls.
func (s *Synthetic) Read() (Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if s.cfg.ReadyEvery > 1 && s.polls%s.cfg.ReadyEvery != 0 {
		return Reading{}, false
	}
	return s.sample(), true
}

// Record draws n samples into a playback recording.
func (s *Synthetic) Record(n int) (*Recording, error) {
	data := make([]float64, 0, 6*n)
	for i := 0; i < n; i++ {
		v := s.Sample().Values()
		data = append(data, v[:]...)
	}
	return NewRecording(data)
}

// SyntheticPort stands in for a board on a serial port: it streams one CSV
// sample line from a Synthetic generator every interval until closed. Written
// commands are recorded and otherwise ignored.
type SyntheticPort struct {
	pr   *io.PipeReader
	pw   *io.PipeWriter
	done chan struct{}
	once sync.Once

	mu       sync.Mutex
	commands []string
}

// NewSyntheticPort starts streaming samples from gen.
func NewSyntheticPort(gen *Synthetic, interval time.Duration) *SyntheticPort {
	pr, pw := io.Pipe()
	p := &SyntheticPort{pr: pr, pw: pw, done: make(chan struct{})}
	go p.stream(gen, interval)
	return p
}

func (p *SyntheticPort) stream(gen *Synthetic, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	_, _ = io.WriteString(p.pw, "# synthetic imu\n")
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			r := gen.Sample()
			line := fmt.Sprintf("%.5f,%.5f,%.5f,%.5f,%.5f,%.5f\n",
				r.Gyr.X, r.Gyr.Y, r.Gyr.Z, r.Acc.X, r.Acc.Y, r.Acc.Z)
			if _, err := io.WriteString(p.pw, line); err != nil {
				return
			}
		}
	}
}

func (p *SyntheticPort) Read(b []byte) (int, error) {
	return p.pr.Read(b)
}

func (p *SyntheticPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commands = append(p.commands, string(b))
	return len(b), nil
}

// Commands returns everything written to the port.
func (p *SyntheticPort) Commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.commands...)
}

// Close stops the stream; pending and later reads return io.EOF.
func (p *SyntheticPort) Close() error {
	p.once.Do(func() {
		close(p.done)
		_ = p.pw.Close()
	})
	return nil
}
