package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kr/pretty"

	"neviweb-go-home/internal/neviweb"
	"neviweb-go-home/internal/thermostat"
)

type lister interface {
	Locations(ctx context.Context) ([]neviweb.Location, error)
	Devices(ctx context.Context, locationID int) ([]neviweb.DeviceInfo, error)
}

type networkReport struct {
	ID      int
	Name    string
	Devices []deviceReport
}

type deviceReport struct {
	ID         int
	Name       string
	SKU        string
	Model      int
	Firmware   string
	Family     string // empty when unsupported
	Attributes []string
}

// runDiscover logs in with a fresh session, prints what the bridge would
// manage and exits. The store is left alone so a running bridge keeps its
// database lock.
func runDiscover(cfg *Config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Duration(cfg.Neviweb.RequestTimeout)*time.Second)
	defer cancel()

	report, err := discoverNetworks(ctx, newClient(cfg, nil, logger))
	if err != nil {
		return err
	}
	_, err = pretty.Fprintf(os.Stdout, "%# v\n", report)
	return err
}

func discoverNetworks(ctx context.Context, client lister) ([]networkReport, error) {
	locations, err := client.Locations(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]networkReport, 0, len(locations))
	for _, loc := range locations {
		devices, err := client.Devices(ctx, loc.ID)
		if err != nil {
			return nil, fmt.Errorf("network %q: %w", loc.Name, err)
		}
		nr := networkReport{ID: loc.ID, Name: loc.Name}
		for _, info := range devices {
			dr := deviceReport{ID: info.ID, Name: info.Name, SKU: info.SKU}
			if info.Signature != nil {
				dr.Model = info.Signature.Model
				dr.Firmware = info.Signature.SoftVersion.String()
				if fam := thermostat.FamilyForModel(dr.Model); fam != nil {
					dr.Family = fam.Name
					dr.Attributes = fam.Attributes()
				}
			}
			nr.Devices = append(nr.Devices, dr)
		}
		reports = append(reports, nr)
	}
	return reports, nil
}
