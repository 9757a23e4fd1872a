package prosilica

import (
	"testing"

	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"github.com/areaDetector/ADProsilica/pvapi/pvsim"
)

func TestRegistry(t *testing.T) {
	sim := pvsim.New(pvsim.DefaultCamera(1), pvsim.DefaultCamera(2))
	sim.Manual = true
	r := NewRegistry(sim, Config{Logger: zaptest.NewLogger(t).Sugar()})
	defer r.Close()

	a, err := r.Create("psl2", 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a.UniqueID(), test.ShouldEqual, uint32(2))
	w := &fakeWriter{}
	b, err := r.Create("psl1", 1, func(c *Config) { c.Writer = w })
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.cfg.Writer, test.ShouldEqual, w)
	test.That(t, a.cfg.Writer, test.ShouldBeNil)
	_, err = r.Create("psl1", 3)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, r.Names(), test.ShouldResemble, []string{"psl1", "psl2"})

	test.That(t, a.Connect(), test.ShouldBeNil)
	got, ok := r.Get("psl2")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, got, test.ShouldEqual, a)

	test.That(t, r.Destroy("psl2"), test.ShouldBeNil)
	test.That(t, a.Connected(), test.ShouldBeFalse)
	test.That(t, sim.Calls(), test.ShouldContain, "Close")
	_, ok = r.Get("psl2")
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, r.Destroy("psl2"), test.ShouldNotBeNil)

	test.That(t, r.Close(), test.ShouldBeNil)
	test.That(t, r.Names(), test.ShouldBeEmpty)
}
