package substrates

/*
   Copyright 2018 Bruno Moura <brunotm@gmail.com>

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigIsSet(t *testing.T) {
	c := NewConfig(nil)
	c.Set("a value", "a.nested.value.set.2")
	assert.True(t, c.IsSet("a.nested"), "a.nested")
	assert.True(t, c.IsSet("a.nested.value.set.2"), "a.nested.value.set.2")
	assert.False(t, c.IsSet("a.nested.value.set.8"), "a.nested.value.set.8")
}

func TestConfigSetGet(t *testing.T) {
	c := NewConfig(nil)

	c.Set("string", "a.nested.value")
	assert.Equal(t, "string", c.Get("a.nested.value").String("string"), "a.nested.value")

	c.Set(1.5, "array.append.#")
	assert.Equal(t, 1.5, c.Get("array.append.0").Float64(2.0), "array.append.0")

	c.Set(1, "array.append.#.nested")
	assert.Equal(t, int64(1), c.Get("array.append.1.nested").Int64(2), "array.append.1.nested")

	c.Set(true, "array.append.#.0")
	assert.Equal(t, true, c.Get("array.append.2.0").Bool(false), "array.append.2.0")
}

func TestConfigGetDefaults(t *testing.T) {
	c := NewConfig(nil)

	assert.Equal(t, "default", c.Get("a.default.string.value").String("default"))
	assert.Equal(t, true, c.Get("a.default.bool.value").Bool(true))
	assert.Equal(t, int64(10), c.Get("a.default.int.value").Int64(10))
	assert.Equal(t, float64(10), c.Get("a.default.float.value").Float64(10))
	assert.Equal(t, time.Microsecond, c.Get("a.default.duration.value").Duration(time.Microsecond))
}

func TestConfigCircuitDefaults(t *testing.T) {
	c := NewConfig(nil)
	defaults := c.CircuitDefaults()
	assert.Equal(t, 1, defaults.Lanes)
	assert.Equal(t, 0, defaults.QueueCapacity)
	assert.Equal(t, PolicyUnbounded, defaults.QueuePolicy)
}

func TestConfigCircuitDefaultsRoundTrip(t *testing.T) {
	c := NewConfig(nil)
	c.Set(4, "lanes")
	c.Set(128, "queue_capacity")
	c.Set(int(PolicyDrop), "queue_policy")

	defaults := c.CircuitDefaults()
	assert.Equal(t, 4, defaults.Lanes)
	assert.Equal(t, 128, defaults.QueueCapacity)
	assert.Equal(t, PolicyDrop, defaults.QueuePolicy)
}

func TestConfigCircuitDefaultsClampsLanesBelowOne(t *testing.T) {
	c := NewConfig(nil)
	c.Set(0, "lanes")
	assert.Equal(t, 1, c.CircuitDefaults().Lanes)
}
