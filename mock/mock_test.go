package mock

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

	"github.com/stretchr/testify/assert"

	"github.com/brunotm/substrates"
)

func TestReceiverCapturesInOrder(t *testing.T) {
	r := New[int]()

	r.Receive(substrates.Subject{}, 1)
	r.Receive(substrates.Subject{}, 2)
	r.Receive(substrates.Subject{}, 3)

	assert.Equal(t, []int{1, 2, 3}, r.Values())
	assert.Equal(t, 3, r.Len())
}

func TestFailingReceiverPanics(t *testing.T) {
	f := &FailingReceiver[int]{Message: "boom"}
	assert.PanicsWithValue(t, "boom", func() {
		f.Receive(substrates.Subject{}, 1)
	})
}
