// queue.go
/*
Copyright 2021 Bruce Golden and Matt Spangler

Permission is hereby granted, free of charge, to any person obtaining a copy of
this software and associated documentation files (the "Software"), to deal in
the Software without restriction, including without limitation the rights to
use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
of the Software, and to permit persons to whom the Software is furnished to do
so, subject to the following conditions:
The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/
package disease

import (
	"container/heap"

	"github.com/blgolden/epiSim/timeline"
)

type eventKind int

const (
	evTransition eventKind = iota // person leaves from and enters to
	evContact                     // infector meets person, may transmit
	evHosp                        // person is hospitalized
	evTest                        // person's test result comes back
)

type event struct {
	t      float64
	seq    int // ties are processed in scheduling order
	kind   eventKind
	person int
	other  int // infector of a contact
	from   timeline.Category
	to     timeline.Category
	dur    float64 // contact duration
	site   int
	visits [2]int // infector's and person's visit ids of a contact
}

type eventQueue []event

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].t != q[j].t {
		return q[i].t < q[j].t
	}
	return q[i].seq < q[j].seq
}
func (q eventQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x interface{}) { *q = append(*q, x.(event)) }
func (q *eventQueue) Pop() interface{} {
	old := *q
	e := old[len(old)-1]
	*q = old[:len(old)-1]
	return e
}

// push queues e unless it falls after the horizon
func (m *Model) push(e event) bool {
	if e.t >= m.MaxTime {
		return false
	}
	m.seq++
	e.seq = m.seq
	heap.Push(&m.queue, e)
	return true
}

func (m *Model) pop() event {
	return heap.Pop(&m.queue).(event)
}
