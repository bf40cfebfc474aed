package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "swarmcrew.jobs.J1.progress", Subject("swarmcrew.jobs", "J1", KindProgress))
	assert.Equal(t, "swarmcrew.jobs.job_42.result", Subject("swarmcrew.jobs", "job.42", KindResult))
	assert.Equal(t, "p.a_b_c.result", Subject("p", "a*b>c", KindResult))
	assert.Equal(t, "p.with_space.progress", Subject("p", "with space", KindProgress))
	assert.Equal(t, "p._.result", Subject("p", "", KindResult))
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", arbor.NewLogger())
	assert.Error(t, err)
}
