package config

import (
	"bufio"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"

	"codeberg.org/mutker/nexmon/internal/errors"
)

const (
	inventoryMinFields = 7
	inventoryMaxFields = 8
)

// Switch is one parsed inventory entry: everything needed to reach a single
// monitored switch.
type Switch struct {
	Addr        string
	Username    string
	Password    string
	Protocol    string
	Port        int
	VerifySSL   bool
	Timeout     time.Duration
	Description string
	Location    string
}

// Inventory is the parsed inventory file. Malformed lines are collected
// per-switch instead of failing the whole file, so one bad entry never
// blocks polling of the others.
type Inventory struct {
	Switches  []Switch
	Malformed []error
}

// LoadInventory parses the switch inventory file. Format: lines starting
// with # are comments, a [location] header applies to the entries after it,
// and each entry is a comma-separated line of
// ip,username,password,protocol,port,verify_ssl,timeout,description with the
// description optional.
func LoadInventory(path string) (*Inventory, error) {
	errFactory := errors.New()

	f, err := os.Open(path)
	if err != nil {
		return nil, errFactory.Wrap(ErrInventoryRead, err)
	}
	defer f.Close()

	inv := &Inventory{}
	location := ""

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				inv.Malformed = append(inv.Malformed,
					errFactory.WithData(ErrInventoryLocation, line))
				continue
			}
			location = strings.TrimSpace(strings.Trim(line, "[]"))
			continue
		}

		if location == "" {
			inv.Malformed = append(inv.Malformed,
				errFactory.WithMessage(ErrInventoryLocation,
					"location header is mandatory before switch entries"))
			continue
		}

		sw, err := parseSwitchLine(line, location)
		if err != nil {
			inv.Malformed = append(inv.Malformed, err)
			continue
		}
		inv.Switches = append(inv.Switches, sw)
	}
	if err := scanner.Err(); err != nil {
		return nil, errFactory.Wrap(ErrInventoryRead, err)
	}

	return inv, nil
}

func parseSwitchLine(line, location string) (Switch, error) {
	errFactory := errors.New()

	fields := strings.Split(line, ",")
	if len(fields) < inventoryMinFields || len(fields) > inventoryMaxFields {
		return Switch{}, errFactory.WithData(ErrInventoryLine, struct {
			Line   string
			Fields int
		}{Line: line, Fields: len(fields)})
	}

	for i := 0; i < inventoryMinFields; i++ {
		if strings.TrimSpace(fields[i]) == "" {
			return Switch{}, errFactory.WithData(ErrInventoryLine, struct {
				Line  string
				Field int
			}{Line: line, Field: i})
		}
	}

	protocol := strings.ToLower(fields[3])
	if protocol != "http" && protocol != "https" {
		return Switch{}, errFactory.WithData(ErrInventoryLine, struct {
			Line     string
			Protocol string
		}{Line: line, Protocol: fields[3]})
	}

	port, err := cast.ToIntE(fields[4])
	if err != nil || port <= 0 || port > 65535 {
		return Switch{}, errFactory.WithData(ErrInventoryLine, struct {
			Line string
			Port string
		}{Line: line, Port: fields[4]})
	}

	timeoutSec, err := cast.ToIntE(fields[6])
	if err != nil || timeoutSec <= 0 {
		return Switch{}, errFactory.WithData(ErrInventoryLine, struct {
			Line    string
			Timeout string
		}{Line: line, Timeout: fields[6]})
	}

	sw := Switch{
		Addr:      fields[0],
		Username:  fields[1],
		Password:  fields[2],
		Protocol:  protocol,
		Port:      port,
		VerifySSL: strings.EqualFold(fields[5], "true"),
		Timeout:   time.Duration(timeoutSec) * time.Second,
		Location:  location,
	}
	if len(fields) == inventoryMaxFields {
		sw.Description = fields[7]
	}

	return sw, nil
}
