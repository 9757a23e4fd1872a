package prosilica

// enqueue hands an image to the delivery goroutine.  It never blocks; if the
// queue is full the image is dropped.
func (d *Detector) enqueue(dl delivery) {
	select {
	case d.deliveries <- dl:
	default:
		dl.img.Release()
		d.metrics.deliveryDropped()
		if d.frameLog.Allow() {
			d.log.Warnw("consumers are behind, image not delivered", "op", "deliver", "uniqueId", dl.img.UniqueID)
		}
	}
}

func (d *Detector) deliverLoop() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			for {
				select {
				case dl := <-d.deliveries:
					dl.img.Release()
				default:
					return
				}
			}
		case dl := <-d.deliveries:
			d.deliver(dl)
		}
	}
}

func (d *Detector) deliver(dl delivery) {
	defer dl.img.Release()
	if dl.save {
		if _, err := d.writeFile(dl.img); err != nil {
			d.log.Errorw("auto save failed", "op", "autosave", "error", err)
		}
	}
	d.consumersMu.RLock()
	consumers := make([]ImageConsumer, len(d.consumers))
	copy(consumers, d.consumers)
	d.consumersMu.RUnlock()
	for _, fn := range consumers {
		fn(dl.img)
	}
}
