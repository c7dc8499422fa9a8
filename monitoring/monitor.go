// Package monitoring serves the state of RPM clock domains over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/rpmclk/rpmclk"
)

// Monitor turns a set of clock domains into a web server that reports their
// state and lets an operator drive the clocks by hand.
type Monitor struct {
	portNumber int

	lock    sync.Mutex
	domains []*rpmclk.Domain
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterDomain registers a domain to be monitored.
func (m *Monitor) RegisterDomain(d *rpmclk.Domain) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.domains = append(m.domains, d)
}

// Router returns the handler of the monitor's API.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/clocks", m.listClocks).Methods(http.MethodGet)
	r.HandleFunc("/api/clock/{name}", m.clockDetails).Methods(http.MethodGet)
	r.HandleFunc("/api/clock/{name}/rate", m.remoteRate).
		Methods(http.MethodGet)
	r.HandleFunc("/api/clock/{name}/rate/{hz:[0-9]+}", m.setRate).
		Methods(http.MethodPost)
	r.HandleFunc("/api/clock/{name}/enable", m.enable).
		Methods(http.MethodPost)
	r.HandleFunc("/api/clock/{name}/disable", m.disable).
		Methods(http.MethodPost)
	r.HandleFunc("/api/resource", m.listResources).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", m.collectProfile).Methods(http.MethodGet)

	return r
}

// StartServer starts serving in the background and returns the URL of the
// server.
func (m *Monitor) StartServer() string {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring RPM clocks with %s\n", url)

	router := m.Router()
	go func() {
		err := http.Serve(listener, router)
		dieOnErr(err)
	}()

	return url
}

func (m *Monitor) findClock(name string) *rpmclk.Clock {
	m.lock.Lock()
	defer m.lock.Unlock()

	for _, d := range m.domains {
		if c, ok := d.Lookup(name); ok {
			return c
		}
	}

	return nil
}

func (m *Monitor) findClockOr404(
	w http.ResponseWriter,
	r *http.Request,
) *rpmclk.Clock {
	name := mux.Vars(r)["name"]

	c := m.findClock(name)
	if c == nil {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, "clock %s not found", name)
	}

	return c
}

type clockRsp struct {
	Domain          string `json:"domain"`
	Name            string `json:"name"`
	Peer            string `json:"peer"`
	Branch          bool   `json:"branch"`
	ActiveOnly      bool   `json:"active_only"`
	Enabled         bool   `json:"enabled"`
	LastSetKHz      uint64 `json:"last_set_khz"`
	LastSetSleepKHz uint64 `json:"last_set_sleep_khz"`
	RateHz          uint64 `json:"rate_hz"`
}

func (m *Monitor) listClocks(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	domains := append([]*rpmclk.Domain(nil), m.domains...)
	m.lock.Unlock()

	rsp := []clockRsp{}
	for _, d := range domains {
		for _, c := range d.Clocks() {
			s := c.State()
			rsp = append(rsp, clockRsp{
				Domain:          d.Name(),
				Name:            s.Name,
				Peer:            s.Peer,
				Branch:          s.Branch,
				ActiveOnly:      s.ActiveOnly,
				Enabled:         s.Enabled,
				LastSetKHz:      s.LastSetKHz,
				LastSetSleepKHz: s.LastSetSleepKHz,
				RateHz:          s.PublishedRateHz,
			})
		}
	}

	sort.SliceStable(rsp, func(i, j int) bool {
		return rsp[i].Domain < rsp[j].Domain
	})

	writeJSON(w, rsp)
}

func (m *Monitor) clockDetails(w http.ResponseWriter, r *http.Request) {
	c := m.findClockOr404(w, r)
	if c == nil {
		return
	}

	state := c.State()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&state)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type rateRsp struct {
	RateHz uint64 `json:"rate_hz"`
	Error  string `json:"error,omitempty"`
}

func (m *Monitor) remoteRate(w http.ResponseWriter, r *http.Request) {
	c := m.findClockOr404(w, r)
	if c == nil {
		return
	}

	rate, err := c.GetRate()
	if err != nil {
		w.WriteHeader(http.StatusBadGateway)
		writeJSON(w, rateRsp{Error: err.Error()})
		return
	}

	writeJSON(w, rateRsp{RateHz: rate})
}

func (m *Monitor) setRate(w http.ResponseWriter, r *http.Request) {
	c := m.findClockOr404(w, r)
	if c == nil {
		return
	}

	hz, err := strconv.ParseUint(mux.Vars(r)["hz"], 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	m.reply(w, c.Clk().SetRate(hz))
}

func (m *Monitor) enable(w http.ResponseWriter, r *http.Request) {
	c := m.findClockOr404(w, r)
	if c == nil {
		return
	}

	m.reply(w, c.Enable())
}

func (m *Monitor) disable(w http.ResponseWriter, r *http.Request) {
	c := m.findClockOr404(w, r)
	if c == nil {
		return
	}

	c.Disable()
	m.reply(w, nil)
}

func (m *Monitor) reply(w http.ResponseWriter, err error) {
	if err != nil {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	writeJSON(w, rsp)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
